package track

import (
	"fmt"

	"github.com/ytget/yolo-vision/internal/model"
)

// Preset names an ultralytics tracker config and the thresholds set on top of it
type Preset struct {
	Name           model.TrackerType // ultralytics tracker yaml
	HighThresh     float32           // first association
	LowThresh      float32           // second association lower bound
	NewTrackThresh float32           // minimum score to start a track
	TrackBuffer    int               // frames a lost track is kept at 30 fps
	MatchThresh    float32           // max IoU distance in the first association
	FuseScore      bool              // weight IoU by detection score
	MotionComp     bool              // sparse optical flow camera motion compensation
}

// Built-in presets
var (
	ByteTrack = Preset{
		Name:           model.TrackerByteTrack,
		HighThresh:     0.5,
		LowThresh:      0.1,
		NewTrackThresh: 0.6,
		TrackBuffer:    30,
		MatchThresh:    0.8,
		FuseScore:      true,
	}
	BoTSORT = Preset{
		Name:           model.TrackerBoTSORT,
		HighThresh:     0.5,
		LowThresh:      0.1,
		NewTrackThresh: 0.6,
		TrackBuffer:    30,
		MatchThresh:    0.8,
		FuseScore:      true,
		MotionComp:     true,
	}
)

// gmc_method value for the BoT-SORT config
const motionCompMethod = "sparseOptFlow"

// PresetFor returns the preset named by a tracker type
func PresetFor(t model.TrackerType) (Preset, error) {
	switch t {
	case model.TrackerByteTrack:
		return ByteTrack, nil
	case model.TrackerBoTSORT:
		return BoTSORT, nil
	}
	return Preset{}, fmt.Errorf("no tracker preset for %q", t)
}

// overrides maps the preset onto ultralytics tracker config keys
func (p Preset) overrides() map[string]any {
	out := map[string]any{
		"track_high_thresh": p.HighThresh,
		"track_low_thresh":  p.LowThresh,
		"new_track_thresh":  p.NewTrackThresh,
		"track_buffer":      p.TrackBuffer,
		"match_thresh":      p.MatchThresh,
		"fuse_score":        p.FuseScore,
	}
	if p.Name == model.TrackerBoTSORT {
		if p.MotionComp {
			out["gmc_method"] = motionCompMethod
		} else {
			out["gmc_method"] = nil
		}
	}
	return out
}
