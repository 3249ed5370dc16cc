package fault_test

import (
	"fmt"
	"testing"

	"github.com/rytmilabs/rytmi"
	"github.com/rytmilabs/rytmi/fault"
)

func TestFallbackChain(t *testing.T) {
	h := fault.NewHandler()
	h.SetFallback("kick-808", "kick-sub")
	tests := []struct {
		id   string
		want string
	}{
		{"kick-808", "kick-sub"},           // exact entry wins over the kick prefix
		{"kick-punchy", "kick-classic"},    // category prefix
		{"bass-acid", "bass-standard"},     // category prefix
		{"synth-acid-303x", "synth-acid-303"}, // longest prefix wins over "synth"
		{"synth-weird", "synth-lead-bright"},
		{"no-such-thing", "kick-classic"}, // ultimate fallback
	}
	for _, test := range tests {
		got, ok := h.Fallback(test.id)
		if !ok {
			t.Errorf("Fallback(%q) found nothing, want %q", test.id, test.want)
			continue
		}
		if got != test.want {
			t.Errorf("Fallback(%q) = %q, want %q", test.id, got, test.want)
		}
	}
}

func TestFallbackNeverReturnsTheFailedID(t *testing.T) {
	h := fault.NewHandler()
	// the ultimate fallback itself has nowhere left to go
	if sub, ok := h.Fallback(fault.UltimateFallback); ok {
		t.Errorf("Fallback(%q) = %q, want none", fault.UltimateFallback, sub)
	}
	h.SetFallback("loop-preset", "loop-preset")
	if sub, ok := h.Fallback("loop-preset"); ok {
		t.Errorf("self-referencing table entry returned %q, want none", sub)
	}
}

func TestReportRecordsAndNotifies(t *testing.T) {
	h := fault.NewHandler()
	var seen []rytmi.ErrorRecord
	sub := h.Subscribe(func(rec rytmi.ErrorRecord) {
		seen = append(seen, rec)
	})
	rec := h.Report(rytmi.ErrorRecord{
		Kind:     rytmi.ErrSampleLoad,
		Severity: rytmi.SeverityMedium,
		Message:  "render failed",
		PresetID: "kick-808",
	})
	if rec.At.IsZero() {
		t.Errorf("Report did not stamp the record")
	}
	if len(seen) != 1 || seen[0].PresetID != "kick-808" {
		t.Fatalf("subscriber saw %v, want the reported record", seen)
	}
	if got := h.Records(); len(got) != 1 || got[0].Message != "render failed" {
		t.Fatalf("Records() = %v, want the reported record", got)
	}
	sub.Close()
	sub.Close() // closing twice is fine
	h.Report(rytmi.ErrorRecord{Kind: rytmi.ErrPlayback})
	if len(seen) != 1 {
		t.Errorf("closed subscription still received records")
	}
	if len(h.Records()) != 2 {
		t.Errorf("second report not recorded")
	}
}

func TestReportSurvivesPanickingSubscriber(t *testing.T) {
	h := fault.NewHandler()
	h.Subscribe(func(rytmi.ErrorRecord) { panic("bad subscriber") })
	var after bool
	h.Subscribe(func(rytmi.ErrorRecord) { after = true })
	h.Report(rytmi.ErrorRecord{Kind: rytmi.ErrScheduler, Severity: rytmi.SeverityFatal})
	if len(h.Records()) != 1 {
		t.Errorf("report lost after subscriber panic")
	}
	if !after {
		t.Errorf("later subscriber was skipped after a panic")
	}
}

func TestRecordHistoryIsCapped(t *testing.T) {
	h := fault.NewHandler()
	for i := 0; i < 200; i++ {
		h.Report(rytmi.ErrorRecord{Kind: rytmi.ErrUnknown, Message: fmt.Sprintf("r%d", i)})
	}
	got := h.Records()
	if len(got) != 128 {
		t.Fatalf("history has %d records, want 128", len(got))
	}
	if got[len(got)-1].Message != "r199" {
		t.Errorf("newest record missing, last is %q", got[len(got)-1].Message)
	}
	if got[0].Message != "r72" {
		t.Errorf("oldest kept record is %q, want r72", got[0].Message)
	}
	h.Clear()
	if len(h.Records()) != 0 {
		t.Errorf("Clear left records behind")
	}
}
