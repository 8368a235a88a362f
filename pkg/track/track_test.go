package track

import (
	"testing"

	"github.com/matzehuels/tracktree/pkg/errors"
)

func TestKeyCaseInsensitive(t *testing.T) {
	a := Track{Title: "Nightcall", Artist: "Kavinsky", Album: "OutRun"}
	b := Track{Title: "NIGHTCALL", Artist: "kavinsky", Album: "outrun"}
	if a.Key() != b.Key() {
		t.Error("keys should be case-insensitive")
	}
	if !a.Equal(b) {
		t.Error("tracks differing only in case should be equal")
	}
}

func TestEqualIgnoresTags(t *testing.T) {
	a := Track{Title: "Nightcall", Artist: "Kavinsky", Tags: []string{"mood:dark"}}
	b := Track{Title: "Nightcall", Artist: "Kavinsky", Tags: []string{"energy:high"}}
	if !a.Equal(b) {
		t.Error("tags must not affect identity")
	}
}

func TestEqualDistinguishesAlbum(t *testing.T) {
	a := Track{Title: "Intro", Artist: "The xx", Album: "xx"}
	b := Track{Title: "Intro", Artist: "The xx", Album: "Coexist"}
	if a.Equal(b) {
		t.Error("same title/artist on different albums are different tracks")
	}
}

func TestHasTag(t *testing.T) {
	tr := Track{Title: "Intro", Artist: "The xx", Tags: []string{"mood:calm", "genre:indie"}}
	if !tr.HasTag("mood:calm") {
		t.Error("expected tag not found")
	}
	if tr.HasTag("mood:dark") {
		t.Error("unexpected tag found")
	}
	if tr.HasTag("mood") {
		t.Error("HasTag must match the full tag, not the category")
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		track Track
		want  string
	}{
		{Track{Title: "Nightcall", Artist: "Kavinsky"}, "Kavinsky - Nightcall"},
		{Track{Title: "Untitled"}, "Untitled"},
	}
	for _, tt := range tests {
		if got := tt.track.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		track   Track
		wantErr bool
	}{
		{"valid", Track{Title: "Nightcall", Artist: "Kavinsky"}, false},
		{"missing title", Track{Artist: "Kavinsky"}, true},
		{"missing artist", Track{Title: "Nightcall"}, true},
		{"whitespace title", Track{Title: "   ", Artist: "Kavinsky"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.track.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, errors.ErrCodeInvalidTrack) {
				t.Errorf("expected ErrCodeInvalidTrack, got %v", errors.GetCode(err))
			}
		})
	}
}

func TestClone(t *testing.T) {
	orig := Track{Title: "Intro", Artist: "The xx", Tags: []string{"mood:calm"}}
	clone := orig.Clone()
	clone.Tags[0] = "mood:dark"
	if orig.Tags[0] != "mood:calm" {
		t.Error("Clone must copy the tag slice")
	}
}
