// Package keyframe owns the post-processing core for keyframe trajectories
// produced by an upstream visual SLAM run and the object-detection log
// recorded alongside it.
//
// Responsibilities: parsing the TUM trajectory (fail-fast) and the detection
// log (best-effort), temporal association of detections to the nearest pose,
// and local loop-closure correction of revisited positions.
// Key types: Pose, Trajectory, DetectionEvent, Association, LoopClosure.
//
// Dependency rule: this package performs no rendering and no SQL. Plotting
// lives in internal/render and persistence in internal/db.
package keyframe
