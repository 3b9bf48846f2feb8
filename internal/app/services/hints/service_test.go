package hints

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/firstfix/starterkit/internal/app/domain/repopack"
	"github.com/firstfix/starterkit/internal/app/storage"
	"github.com/firstfix/starterkit/internal/app/storage/memory"
	"github.com/firstfix/starterkit/pkg/logger"
)

type fakePacks struct {
	pack  repopack.Pack
	calls int
}

func (f *fakePacks) BuildPack(ctx context.Context, owner, name string, number int) (repopack.Pack, bool, error) {
	f.calls++
	return f.pack, false, nil
}

type fakeRetriever struct {
	matches []storage.Match
}

func (f *fakeRetriever) HintChunks(ctx context.Context, pack repopack.Pack) ([]storage.Match, error) {
	return f.matches, nil
}

type fakeGen struct {
	reply    string
	lastUser string
	calls    int
}

func (f *fakeGen) Generate(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	f.calls++
	f.lastUser = userMessage
	return f.reply, nil
}

func testPack() repopack.Pack {
	return repopack.Pack{
		RepoKey: "octo/widgets@abc123",
		SHA:     "abc123",
		Issue: repopack.IssueRef{
			Number:   7,
			Title:    "Login form crashes on empty email",
			BodyText: "Submitting with an empty email raises an unhandled exception.",
		},
		Chunks: []repopack.Chunk{
			{Path: "README.md", Kind: repopack.KindDoc, Text: "# Widgets\nA demo app."},
			{Path: "requirements.txt", Kind: repopack.KindConfig, Text: "flask==3.0\n"},
			{Path: "tests/test_forms.py", Kind: repopack.KindTest, Text: "def test_form(): pass"},
		},
	}
}

const goodReply = `{"high_level_goal":"Validate the email before submit","where_to_work":["app/forms.py"],"what_to_change":["Add an empty check"],"how_to_verify":["Run pytest"],"gotchas":["Watch for whitespace-only input"]}`

func TestHintsGeneratesAndCaches(t *testing.T) {
	packs := &fakePacks{pack: testPack()}
	gen := &fakeGen{reply: goodReply}
	store := memory.New()
	svc := New(packs, &fakeRetriever{}, gen, store, time.Hour, time.Second, logger.NewDefault("test"))

	bundle, err := svc.Hints(context.Background(), "Octo", "Widgets", 7)
	if err != nil {
		t.Fatalf("hints: %v", err)
	}
	if bundle.HighLevelGoal != "Validate the email before submit" {
		t.Fatalf("unexpected goal: %q", bundle.HighLevelGoal)
	}
	if len(bundle.WhereToWork) != 1 || bundle.WhereToWork[0] != "app/forms.py" {
		t.Fatalf("unexpected where_to_work: %v", bundle.WhereToWork)
	}

	again, err := svc.Hints(context.Background(), "octo", "widgets", 7)
	if err != nil {
		t.Fatalf("cached hints: %v", err)
	}
	if again.HighLevelGoal != bundle.HighLevelGoal {
		t.Fatalf("cache returned different bundle")
	}
	if gen.calls != 1 {
		t.Fatalf("expected 1 generate call, got %d", gen.calls)
	}
	if packs.calls != 1 {
		t.Fatalf("expected 1 pack build, got %d", packs.calls)
	}
}

func TestHintsUserMessageIncludesContext(t *testing.T) {
	packs := &fakePacks{pack: testPack()}
	gen := &fakeGen{reply: goodReply}
	retriever := &fakeRetriever{matches: []storage.Match{
		{SubChunk: storage.SubChunk{
			Path:      "app/forms.py",
			StartLine: 10,
			EndLine:   24,
			Symbol:    "LoginForm",
			Preview:   "class LoginForm:\n    email = StringField()",
		}, Score: 0.9},
	}}
	svc := New(packs, retriever, gen, memory.New(), time.Hour, time.Second, logger.NewDefault("test"))

	if _, err := svc.Hints(context.Background(), "octo", "widgets", 7); err != nil {
		t.Fatalf("hints: %v", err)
	}
	for _, want := range []string{
		"Login form crashes on empty email",
		"flask==3.0",
		"tests/test_forms.py",
		"File: app/forms.py",
		"Lines: 10-24",
		"Symbol: LoginForm",
	} {
		if !strings.Contains(gen.lastUser, want) {
			t.Fatalf("user message missing %q:\n%s", want, gen.lastUser)
		}
	}
}

func TestHintsValidatesInput(t *testing.T) {
	svc := New(&fakePacks{pack: testPack()}, &fakeRetriever{}, &fakeGen{reply: goodReply}, memory.New(), time.Hour, time.Second, logger.NewDefault("test"))
	if _, err := svc.Hints(context.Background(), "", "widgets", 7); err == nil {
		t.Fatalf("expected error for missing owner")
	}
	if _, err := svc.Hints(context.Background(), "octo", "widgets", 0); err == nil {
		t.Fatalf("expected error for bad issue number")
	}
}

func TestParseBundleTolerantOfFences(t *testing.T) {
	fenced := "```json\n" + goodReply + "\n```"
	bundle, err := parseBundle(fenced)
	if err != nil {
		t.Fatalf("parse fenced: %v", err)
	}
	if len(bundle.Gotchas) != 1 {
		t.Fatalf("unexpected gotchas: %v", bundle.Gotchas)
	}

	if _, err := parseBundle("not json at all"); err == nil {
		t.Fatalf("expected error for non-JSON reply")
	}
	if _, err := parseBundle("{}"); err == nil {
		t.Fatalf("expected error for empty bundle")
	}
}
