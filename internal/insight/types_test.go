package insight

import "testing"

func TestJobStatusTransitions(t *testing.T) {
	t.Parallel()

	cases := []struct {
		from JobStatus
		to   JobStatus
		want bool
	}{
		{JobStatusQueued, JobStatusRunning, true},
		{JobStatusQueued, JobStatusComplete, false},
		{JobStatusQueued, JobStatusError, false},
		{JobStatusRunning, JobStatusComplete, true},
		{JobStatusRunning, JobStatusError, true},
		{JobStatusRunning, JobStatusQueued, false},
		{JobStatusComplete, JobStatusRunning, false},
		{JobStatusComplete, JobStatusError, false},
		{JobStatusError, JobStatusComplete, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.want {
			t.Errorf("CanTransitionTo(%s -> %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestJobStatusTerminal(t *testing.T) {
	t.Parallel()

	if JobStatusQueued.Terminal() || JobStatusRunning.Terminal() {
		t.Fatal("queued/running must not be terminal")
	}
	if !JobStatusComplete.Terminal() || !JobStatusError.Terminal() {
		t.Fatal("complete/error must be terminal")
	}
}

func TestReviewNormalizeDefaults(t *testing.T) {
	t.Parallel()

	r := Review{Quality: 4.5}.Normalize()
	if r.Course != MissingFieldPlaceholder || r.Date != MissingFieldPlaceholder || r.Comment != MissingFieldPlaceholder {
		t.Fatalf("expected placeholder defaults, got %+v", r)
	}
	if r.Tags == nil || len(r.Tags) != 0 {
		t.Fatalf("expected empty tag slice, got %v", r.Tags)
	}
	if r.Quality != 4.5 || r.ThumbsUp != 0 || r.ThumbsDown != 0 {
		t.Fatalf("numeric fields altered: %+v", r)
	}
}

func TestReviewNormalizeKeepsObservedFields(t *testing.T) {
	t.Parallel()

	r := Review{Course: "CS 101", Date: "2024-01-02", Comment: "great", Tags: []string{"caring"}}.Normalize()
	if r.Course != "CS 101" || r.Date != "2024-01-02" || r.Comment != "great" {
		t.Fatalf("observed fields overwritten: %+v", r)
	}
	if len(r.Tags) != 1 || r.Tags[0] != "caring" {
		t.Fatalf("tags altered: %v", r.Tags)
	}
}

func TestScrapeResultNormalize(t *testing.T) {
	t.Parallel()

	res := ScrapeResult{
		Reviews: []Review{{}, {Course: "MATH 200"}},
		Stats:   ProfessorStats{OverallRating: 4.2},
	}.Normalize()

	if res.Stats.Department != MissingFieldPlaceholder {
		t.Fatalf("expected department placeholder, got %q", res.Stats.Department)
	}
	if res.Reviews[0].Course != MissingFieldPlaceholder {
		t.Fatalf("expected review default, got %q", res.Reviews[0].Course)
	}
	if res.Reviews[1].Course != "MATH 200" {
		t.Fatalf("observed course overwritten: %q", res.Reviews[1].Course)
	}
}

func TestJobRequestValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		req     JobRequest
		wantErr bool
	}{
		{"valid", JobRequest{ProfessorName: "Jane Doe", University: "Test University"}, false},
		{"empty professor", JobRequest{University: "Test University"}, true},
		{"whitespace professor", JobRequest{ProfessorName: "   ", University: "Test University"}, true},
		{"empty university", JobRequest{ProfessorName: "Jane Doe"}, true},
		{"question optional", JobRequest{ProfessorName: "Jane Doe", University: "U", UserQuestion: ""}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate()
			if tc.wantErr && !IsValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
