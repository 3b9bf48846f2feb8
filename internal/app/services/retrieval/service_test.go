package retrieval

import (
	"context"
	"strings"
	"testing"

	"github.com/firstfix/starterkit/internal/app/domain/repopack"
	"github.com/firstfix/starterkit/internal/app/storage/memory"
)

// keywordEmbedder maps texts onto a fixed vocabulary axis so similarity is
// deterministic: texts sharing words land close together.
func keywordEmbedder(vocab []string) EmbedderFunc {
	return func(_ context.Context, text string) ([]float64, error) {
		low := strings.ToLower(text)
		vec := make([]float64, len(vocab))
		for i, word := range vocab {
			if strings.Contains(low, word) {
				vec[i] = 1
			}
		}
		return vec, nil
	}
}

func testPack() repopack.Pack {
	return repopack.Pack{
		RepoKey: "octo/demo@abc",
		Issue:   repopack.IssueRef{Title: "login form error", BodyText: "the login page crashes"},
		Chunks: []repopack.Chunk{
			{Path: "auth/views.py", StartLine: 1, EndLine: 20, Kind: repopack.KindCode, Text: "def login():\n    render login form", Symbol: "login"},
			{Path: "auth/forms.py", StartLine: 1, EndLine: 10, Kind: repopack.KindCode, Text: "class LoginForm: login fields", Symbol: "LoginForm"},
			{Path: "README.md", StartLine: 1, EndLine: 5, Kind: repopack.KindDoc, Text: "project about gardening"},
		},
	}
}

func newTestService() (*Service, *memory.Store) {
	store := memory.New()
	embed := keywordEmbedder([]string{"login", "form", "gardening", "crashes"})
	return New(store, embed, "test", 0, nil), store
}

func TestIndexAndTopChunks(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	pack := testPack()

	if err := svc.IndexPack(ctx, pack); err != nil {
		t.Fatalf("index pack: %v", err)
	}

	matches, err := svc.TopChunks(ctx, pack, 2)
	if err != nil {
		t.Fatalf("top chunks: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	for _, m := range matches {
		if m.Path == "README.md" {
			t.Fatalf("unrelated doc ranked in top 2: %#v", matches)
		}
	}
	if matches[0].Score < matches[1].Score {
		t.Fatalf("matches not sorted by similarity")
	}
}

func TestTopChunksEmptyCollection(t *testing.T) {
	svc, _ := newTestService()
	matches, err := svc.TopChunks(context.Background(), testPack(), 5)
	if err != nil {
		t.Fatalf("top chunks: %v", err)
	}
	if matches != nil {
		t.Fatalf("expected no matches for unindexed pack, got %v", matches)
	}
}

func TestHintChunksDedupeByPathAndThreshold(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	pack := testPack()
	// Two chunks from the same file; hint selection must keep only one.
	pack.Chunks = append(pack.Chunks, repopack.Chunk{
		Path: "auth/views.py", StartLine: 30, EndLine: 40, Kind: repopack.KindCode,
		Text: "def login_error():\n    handle login crashes",
	})
	if err := svc.IndexPack(ctx, pack); err != nil {
		t.Fatalf("index pack: %v", err)
	}

	selected, err := svc.HintChunks(ctx, pack)
	if err != nil {
		t.Fatalf("hint chunks: %v", err)
	}
	seen := make(map[string]bool)
	for _, m := range selected {
		if seen[m.Path] {
			t.Fatalf("duplicate path %q in hints", m.Path)
		}
		seen[m.Path] = true
		if m.Score < hintMinSim {
			t.Fatalf("match below similarity floor: %f", m.Score)
		}
	}
	if seen["README.md"] {
		t.Fatalf("irrelevant chunk passed the similarity floor")
	}
	if !seen["auth/views.py"] {
		t.Fatalf("expected the login view among hints: %#v", selected)
	}
}

func TestDropRepoClearsCollection(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	pack := testPack()

	if err := svc.IndexPack(ctx, pack); err != nil {
		t.Fatalf("index pack: %v", err)
	}
	if err := svc.DropRepo(ctx, pack.RepoKey); err != nil {
		t.Fatalf("drop repo: %v", err)
	}
	matches, err := svc.TopChunks(ctx, pack, 5)
	if err != nil || matches != nil {
		t.Fatalf("expected empty result after drop, got %v %v", matches, err)
	}
}

func TestCollectionNameSanitized(t *testing.T) {
	svc, _ := newTestService()
	name := svc.collectionName("octo/demo@abc")
	if strings.ContainsAny(name, "/@") {
		t.Fatalf("collection name not sanitized: %q", name)
	}
	if !strings.HasPrefix(name, "test__") {
		t.Fatalf("collection name missing prefix: %q", name)
	}
}
