package keyframe

// Associate matches every event to the temporally nearest pose and keeps the
// pairs whose timestamp difference is at most threshold (seconds). Events
// without a qualifying pose are dropped without error. Output order follows
// the event order. An empty trajectory yields an empty result.
func Associate(traj Trajectory, events []DetectionEvent, threshold float64) []Association {
	assocs := make([]Association, 0, len(events))
	if len(traj) == 0 || len(events) == 0 {
		return assocs
	}

	index := NewTimeIndex(traj)
	dropped := 0
	for _, ev := range events {
		i, diff := index.NearestByTimestamp(ev.Timestamp)
		if i < 0 || !(diff <= threshold) {
			dropped++
			continue
		}
		assocs = append(assocs, Association{
			Pose:      traj[i],
			PoseIndex: i,
			Event:     ev,
			TimeDiff:  diff,
		})
		Tracef("associated %s@%.6f (conf %.2f) -> pose %d @%.6f (dt %.4fs)",
			ev.Label, ev.Timestamp, ev.Confidence, i, traj[i].Timestamp, diff)
	}

	Diagf("associated %d of %d detections (threshold %.3fs, %d beyond tolerance)",
		len(assocs), len(events), threshold, dropped)
	return assocs
}

// GroupByPose indexes associations by the pose they were attached to.
// A pose may receive any number of events.
func GroupByPose(assocs []Association) map[int][]Association {
	groups := make(map[int][]Association)
	for _, a := range assocs {
		groups[a.PoseIndex] = append(groups[a.PoseIndex], a)
	}
	return groups
}
