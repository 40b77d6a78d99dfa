package engine

import "testing"

func TestQualityBitrate(t *testing.T) {
	tests := []struct {
		quality  Quality
		expected int
	}{
		{QualityLow, 128},
		{QualityMedium, 192},
		{QualityHigh, 256},
		{QualityBest, 320},
	}

	for _, tt := range tests {
		t.Run(tt.quality.String(), func(t *testing.T) {
			if got := tt.quality.Bitrate(); got != tt.expected {
				t.Errorf("Bitrate() = %d, want %d", got, tt.expected)
			}
			parsed, err := ParseQuality(tt.quality.String())
			if err != nil {
				t.Fatalf("ParseQuality: %v", err)
			}
			if parsed != tt.quality {
				t.Errorf("ParseQuality(%s) = %v", tt.quality, parsed)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(".FLAC")
	if err != nil {
		t.Fatalf("ParseFormat: %v", err)
	}
	if f != FormatFLAC || !f.IsLossless() {
		t.Fatalf("unexpected format %v", f)
	}
	if _, err := ParseFormat("aiff"); err == nil {
		t.Fatal("expected error for unknown format")
	}
	if FormatM4A.Codec() != "aac" || FormatMP3.Codec() != "libmp3lame" || FormatFLAC.Codec() != "copy" {
		t.Fatal("unexpected codec mapping")
	}
}

func TestMetadataRecordUsable(t *testing.T) {
	var nilRec *MetadataRecord
	if nilRec.Usable() {
		t.Fatal("nil record should not be usable")
	}
	if (&MetadataRecord{Album: "Discovery"}).Usable() {
		t.Fatal("album-only record should not be usable")
	}
	if !(&MetadataRecord{Artist: "Daft Punk"}).Usable() {
		t.Fatal("artist-only record should be usable")
	}
}
