package agent

import "testing"

func TestReplyFilter_PassesNormalText(t *testing.T) {
	f := NewReplyFilter(nil)

	in := "Your store is ready!\nShare the link with your customers."
	if got := f.Clean(in); got != in {
		t.Errorf("got %q, want unchanged", got)
	}
}

func TestReplyFilter_DropsDeniedLines(t *testing.T) {
	f := NewReplyFilter(nil)

	in := "Looking at the history, the user wants products.\nHere is your product list:\n- Mug"
	got := f.Clean(in)
	want := "Here is your product list:\n- Mug"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestReplyFilter_DropsArtifactMentions(t *testing.T) {
	f := NewReplyFilter(nil)

	got := f.Clean("Internal reasoning follows.\nAll done!")
	if got != "All done!" {
		t.Errorf("got %q", got)
	}
}

func TestReplyFilter_ExtraPrefixes(t *testing.T) {
	f := NewReplyFilter([]string{"DEBUG:"})

	got := f.Clean("DEBUG: tool output was large\nSaved your store details.")
	if got != "Saved your store details." {
		t.Errorf("got %q", got)
	}
}

func TestReplyFilter_AllDeniedYieldsEmpty(t *testing.T) {
	f := NewReplyFilter(nil)

	if got := f.Clean("It seems everything was filtered"); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}
