package engine

import "github.com/rytmilabs/rytmi"

// defaultBeat is the hand-authored starter session: one track per preset
// category, a playable groove on the drum tracks, the melodic tracks laid
// out but quiet, so there is sound the moment Play is called and a full
// palette to edit from.
var defaultBeat = rytmi.Beat{
	Tempo:      120,
	Swing:      0,
	Quantize:   true,
	TotalSteps: 16,
	Tracks: []rytmi.Track{
		defTrack("default-kick", "Kick", "kick-classic", 1, 0,
			"X...X...X...X..."),
		defTrack("default-bass", "Bass", "bass-standard", 0.9, 0,
			"X.......x....x.."),
		defTrack("default-hats", "Hats", "hat-closed", 0.7, 0.2,
			"x.X.x.X.x.X.x.X."),
		defTrack("default-snare", "Snare", "snare-classic", 0.85, 0,
			"....X.......X..."),
		defTrack("default-clap", "Clap", "clap-classic", 0.75, -0.1,
			"............X..."),
		defTrack("default-perc", "Shaker", "perc-shaker", 0.55, 0.35,
			".x.x.x.x.x.x.x.x"),
		defTrack("default-lead", "Lead", "synth-lead-bright", 0.6, -0.2,
			"x..x....x......."),
		defTrack("default-pad", "Pad", "synth-pad-warm", 0.5, 0,
			"x..............."),
		defTrack("default-acid", "Acid", "synth-acid-303", 0.7, 0.1,
			"................"),
		defTrack("default-fx", "FX", "fx-sweep", 0.5, -0.35,
			"...............x"),
	},
	Master: rytmi.DefaultMasterEffects(),
}

// defTrack builds one default track from a 16-character grid: X is an
// accented hit, x a softer one, anything else a rest.
func defTrack(id, name, presetID string, volume, pan float64, grid string) rytmi.Track {
	t := rytmi.NewTrack(id, name, presetID, len(grid))
	for i, c := range grid {
		switch c {
		case 'X':
			t.Steps[i].Active = true
			t.Steps[i].SetVelocity(0.9)
		case 'x':
			t.Steps[i].Active = true
			t.Steps[i].SetVelocity(0.6)
		}
	}
	t.SetVolume(volume)
	t.SetPan(pan)
	return t
}

// DefaultBeat returns a deep copy of the starter session.
func DefaultBeat() rytmi.Beat {
	return defaultBeat.Copy()
}
