package history

import (
	"errors"
	"testing"
	"time"

	"github.com/parleyhq/parley/internal/chat"
	"github.com/parleyhq/parley/internal/testutil"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSaveAndLoadConversation(t *testing.T) {
	store := openStore(t)

	turns := []chat.Turn{
		testutil.UserTurn(t, "hello"),
		testutil.AssistantTurn(t,
			testutil.TextPart("sure"),
			testutil.ToolPart("c1", "search", chat.StateOutputAvailable,
				testutil.WithInput(map[string]any{"q": "go"}),
				testutil.WithOutput(map[string]any{"hits": float64(3)})),
		),
	}
	for i, turn := range turns {
		if err := store.SaveTurn("conv1", i, turn); err != nil {
			t.Fatalf("SaveTurn %d: %v", i, err)
		}
	}

	got, err := store.LoadConversation("conv1")
	if err != nil {
		t.Fatalf("LoadConversation: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("turns = %d, want 2", len(got))
	}
	if got[0].Role != chat.RoleUser || got[1].Role != chat.RoleAssistant {
		t.Errorf("roles = %s, %s", got[0].Role, got[1].Role)
	}
	p := got[1].FindToolPart("c1")
	if p == nil || p.State != chat.StateOutputAvailable {
		t.Fatalf("tool part = %+v", p)
	}
	if p.Input["q"] != "go" {
		t.Errorf("input lost through persistence: %+v", p.Input)
	}
}

func TestSaveTurnUpsert(t *testing.T) {
	store := openStore(t)

	turn := testutil.AssistantTurn(t, testutil.TextPart("draft"))
	if err := store.SaveTurn("conv1", 0, turn); err != nil {
		t.Fatalf("SaveTurn: %v", err)
	}

	turn.Parts[0].Text = "final"
	if err := store.SaveTurn("conv1", 0, turn); err != nil {
		t.Fatalf("SaveTurn update: %v", err)
	}

	got, err := store.LoadConversation("conv1")
	if err != nil {
		t.Fatalf("LoadConversation: %v", err)
	}
	if len(got) != 1 || got[0].Parts[0].Text != "final" {
		t.Errorf("conversation = %+v, want one final turn", got)
	}
}

func TestLoadUnknownConversation(t *testing.T) {
	store := openStore(t)

	_, err := store.LoadConversation("ghost")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestConversationsAreIsolated(t *testing.T) {
	store := openStore(t)

	_ = store.SaveTurn("a", 0, testutil.UserTurn(t, "for a"))
	_ = store.SaveTurn("b", 0, testutil.UserTurn(t, "for b"))

	got, err := store.LoadConversation("a")
	if err != nil {
		t.Fatalf("LoadConversation: %v", err)
	}
	if len(got) != 1 || got[0].Parts[0].Text != "for a" {
		t.Errorf("conversation a = %+v", got)
	}
}

func TestPrune(t *testing.T) {
	store := openStore(t)

	if err := store.SaveTurn("conv1", 0, testutil.UserTurn(t, "recent")); err != nil {
		t.Fatalf("SaveTurn: %v", err)
	}

	// Nothing is older than an hour yet.
	removed, err := store.Prune(time.Hour)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 0 {
		t.Errorf("removed = %d, want 0", removed)
	}

	// A negative window moves the cutoff past now, pruning everything.
	removed, err = store.Prune(-time.Hour)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, err := store.LoadConversation("conv1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("pruned conversation still loads: %v", err)
	}
}
