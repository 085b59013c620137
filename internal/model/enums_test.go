package model

import "testing"

func TestJobStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to JobStatus
		want     bool
	}{
		{JobStatusPending, JobStatusProcessing, true},
		{JobStatusProcessing, JobStatusCompleted, true},
		{JobStatusProcessing, JobStatusFailed, true},
		{JobStatusPending, JobStatusCompleted, false},
		{JobStatusPending, JobStatusFailed, false},
		{JobStatusCompleted, JobStatusProcessing, false},
		{JobStatusCompleted, JobStatusFailed, false},
		{JobStatusFailed, JobStatusProcessing, false},
		{JobStatusFailed, JobStatusCompleted, false},
		{JobStatusProcessing, JobStatusPending, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Errorf("CanTransition(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestJobStatusTerminal(t *testing.T) {
	if JobStatusPending.Terminal() || JobStatusProcessing.Terminal() {
		t.Error("pending and processing must not be terminal")
	}
	if !JobStatusCompleted.Terminal() || !JobStatusFailed.Terminal() {
		t.Error("completed and failed must be terminal")
	}
}

func TestParseJobType(t *testing.T) {
	for _, valid := range ValidJobTypes {
		got, err := ParseJobType(string(valid))
		if err != nil {
			t.Errorf("ParseJobType(%q) unexpected error: %v", valid, err)
		}
		if got != valid {
			t.Errorf("ParseJobType(%q) = %q", valid, got)
		}
	}

	if _, err := ParseJobType("uploadProcess"); err == nil {
		t.Error("expected error for camel-case job type")
	}
	if _, err := ParseJobType(""); err == nil {
		t.Error("expected error for empty job type")
	}
}

func TestParseQuality(t *testing.T) {
	if _, err := ParseQuality("9999p"); err == nil {
		t.Error("expected error for unknown quality")
	}
	q, err := ParseQuality("720p")
	if err != nil || q != Quality720p {
		t.Errorf("ParseQuality(720p) = %q, %v", q, err)
	}
}

func TestSettingsForQuality(t *testing.T) {
	tests := []struct {
		quality VideoQuality
		width   int
		height  int
		bitrate string
	}{
		{Quality1080p, 1920, 1080, "5000k"},
		{Quality720p, 1280, 720, "3000k"},
		{Quality480p, 854, 480, "1500k"},
		{Quality360p, 640, 360, "800k"},
		// Unknown strings fall back to 720p settings.
		{VideoQuality("9999p"), 1280, 720, "3000k"},
	}

	for _, tt := range tests {
		s := SettingsForQuality(tt.quality)
		if s.Width != tt.width || s.Height != tt.height || s.Bitrate != tt.bitrate {
			t.Errorf("SettingsForQuality(%s) = %dx%d@%s, want %dx%d@%s",
				tt.quality, s.Width, s.Height, s.Bitrate, tt.width, tt.height, tt.bitrate)
		}
	}
}
