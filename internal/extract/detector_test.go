package extract

import "testing"

func newTestDetector() *Detector {
	return NewDetector(NewMRNExtractor(), NewTemplateMatcher())
}

func TestDetectorScan_CombinedDetection(t *testing.T) {
	t.Parallel()

	d := newTestDetector()
	templates := []string{"Progress Note", "Discharge Summary"}

	det, complete := d.Scan("the patient's MRN is AB123", templates, "the patient's MRN is AB123")
	if complete {
		t.Fatal("complete with only the MRN set")
	}
	if det.MRN != "AB123" || det.Template != "" {
		t.Fatalf("after MRN utterance: %+v", det)
	}

	full := "the patient's MRN is AB123 use the progress note"
	det, complete = d.Scan("use the progress note", templates, full)
	if !complete {
		t.Fatal("both fields set, expected complete")
	}
	if det.MRN != "AB123" || det.Template != "Progress Note" {
		t.Fatalf("after template utterance: %+v", det)
	}
	if det.Text != full {
		t.Errorf("Text = %q, want the accumulated transcript", det.Text)
	}
}

func TestDetectorScan_CompleteStaysTrue(t *testing.T) {
	t.Parallel()

	d := newTestDetector()
	templates := []string{"Progress Note"}

	d.Scan("MRN AB123 progress note", templates, "")

	// Every later scan reports complete again, even with no new fields.
	_, complete := d.Scan("patient resting comfortably", templates, "")
	if !complete {
		t.Error("complete should remain true once both fields are set")
	}
}

func TestDetectorScan_FieldOverwrite(t *testing.T) {
	t.Parallel()

	d := newTestDetector()

	d.Scan("MRN AB123", nil, "")
	det, _ := d.Scan("correction the MRN CD456", nil, "")
	if det.MRN != "CD456" {
		t.Errorf("MRN = %q, a newer match should overwrite", det.MRN)
	}
}

func TestDetectorScan_FieldsSurviveUnrelatedUtterances(t *testing.T) {
	t.Parallel()

	d := newTestDetector()
	d.Scan("MRN AB123", nil, "")

	det, _ := d.Scan("no identifiers here", nil, "")
	if det.MRN != "AB123" {
		t.Errorf("MRN = %q, should persist across non-matching utterances", det.MRN)
	}
}

func TestDetectorReset(t *testing.T) {
	t.Parallel()

	d := newTestDetector()
	d.Scan("MRN AB123 progress note", []string{"Progress Note"}, "full text")
	d.Reset()

	if snap := d.Snapshot(); snap != (Detection{}) {
		t.Errorf("Snapshot after Reset = %+v", snap)
	}
}
