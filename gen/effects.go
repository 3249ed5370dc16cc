package gen

import "github.com/rytmilabs/rytmi"

// trackEffects derives a per-track chain from the role, style and intensity.
// Intensity pushes distortion and tightens the low end; the acid trait raises
// resonance and delay feedback across the board.
func trackEffects(pick rolePick, st styleTraits, intensity int) rytmi.TrackEffects {
	drive := float64(intensity) / 10
	fx := rytmi.DefaultTrackEffects()
	switch pick.role {
	case roleKick:
		fx.Filter.Cutoff = 0.9
		fx.Distortion.Amount = 0.15 * drive
		fx.Distortion.Tone = 0.4
	case roleBass:
		fx.Filter.Cutoff = 0.55 + 0.2*drive
		fx.Filter.Envelope = 0.3
		fx.Distortion.Amount = 0.25 * drive
		if st.acid {
			fx.Filter.Resonance = 0.75
			fx.Filter.Envelope = 0.6
			fx.Delay = rytmi.DelaySettings{Time: 0.375, Feedback: 0.45, Mix: 0.2}
		}
	case rolePercussion:
		switch pick.index {
		case 0:
			fx.Filter.Kind = rytmi.FilterHighpass
			fx.Filter.Cutoff = 0.6
			fx.Delay = rytmi.DelaySettings{Time: 0.25, Feedback: 0.2, Mix: 0.1 * drive}
		case 1:
			fx.Reverb = rytmi.ReverbSettings{Size: 0.4, Damping: 0.5, Mix: 0.15 + 0.1*drive}
			fx.Distortion.Amount = 0.2 * drive
		case 2:
			fx.Reverb = rytmi.ReverbSettings{Size: 0.6, Damping: 0.4, Mix: 0.25}
		default:
			fx.Filter.Kind = rytmi.FilterBandpass
			fx.Filter.Cutoff = 0.55
			fx.Delay = rytmi.DelaySettings{Time: 0.375, Feedback: 0.3, Mix: 0.15}
		}
	case roleSynth:
		if st.acid && pick.index == 0 {
			fx.Filter.Cutoff = 0.4
			fx.Filter.Resonance = 0.85
			fx.Filter.Envelope = 0.7
			fx.Delay = rytmi.DelaySettings{Time: 0.375, Feedback: 0.5, Mix: 0.3}
			fx.Distortion.Amount = 0.3 * drive
		} else if pick.index == 1 {
			fx.Filter.Cutoff = 0.45
			fx.Reverb = rytmi.ReverbSettings{Size: 0.8, Damping: 0.35, Mix: 0.45}
		} else {
			fx.Filter.Cutoff = 0.7
			fx.Filter.Envelope = 0.4
			fx.Delay = rytmi.DelaySettings{Time: 0.25, Feedback: 0.35, Mix: 0.2}
			fx.Reverb = rytmi.ReverbSettings{Size: 0.5, Damping: 0.4, Mix: 0.2}
		}
	default:
		fx.Filter.Cutoff = 0.8
		fx.Reverb = rytmi.ReverbSettings{Size: 0.9, Damping: 0.3, Mix: 0.5}
		fx.Delay = rytmi.DelaySettings{Time: 0.5, Feedback: 0.4, Mix: 0.25}
	}
	if st.dark {
		fx.Filter.Cutoff *= 0.8
		fx.Reverb.Damping = rytmi.Clamp(fx.Reverb.Damping+0.2, 0, 1)
	}
	if st.bright && fx.Filter.Kind == rytmi.FilterLowpass {
		fx.Filter.Cutoff = rytmi.Clamp(fx.Filter.Cutoff*1.2, 0, 1)
	}
	fx.Clamp()
	return fx
}

// masterEffects derives the output bus from the style and intensity: the
// compressor tightens as intensity climbs and the EQ tilts with the style.
func masterEffects(st styleTraits, intensity int) rytmi.MasterEffects {
	drive := float64(intensity) / 10
	m := rytmi.MasterEffects{
		Limiter: 0.15 + 0.35*drive,
		Compressor: rytmi.CompressorSettings{
			Threshold: 0.85 - 0.3*drive,
			Ratio:     2 + 4*drive,
			Attack:    0.5 - 0.35*drive,
			Release:   0.4,
		},
		EQ: rytmi.EQSettings{Low: 1, Mid: 1, High: 1},
	}
	if st.dark {
		m.EQ.Low, m.EQ.High = 1.2, 0.85
	}
	if st.bright {
		m.EQ.High = 1.2
	}
	if st.acid {
		m.EQ.Mid = 1.15
	}
	if st.minimal {
		m.Limiter *= 0.6
		m.Compressor.Ratio = rytmi.Clamp(m.Compressor.Ratio, 1, 3)
	}
	m.Clamp()
	return m
}
