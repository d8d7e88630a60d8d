package sqlexec

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestHooks(t *testing.T) {
	type skipKey struct{}
	var H Hooks[*string, skipKey]

	// Test Adding Hooks
	for i := 0; i < 5; i++ {
		initial := len(H.hooks)
		f := func(ctx context.Context, s *string) (context.Context, error) {
			*s = *s + fmt.Sprintf("%d", initial+1)
			return ctx, nil
		}
		H.AppendHooks(f)
		if len(H.GetHooks()) != initial+1 {
			t.Fatalf("Did not add hook number %d", i+1)
		}
	}

	s := ""
	if _, err := H.RunHooks(context.Background(), &s); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff("12345", s); diff != "" {
		t.Fatal(diff)
	}

	// test skipping hooks
	s = ""
	if _, err := H.RunHooks(context.WithValue(context.Background(), skipKey{}, true), &s); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff("", s); diff != "" {
		t.Fatal(diff)
	}
}

func TestHooksStopOnError(t *testing.T) {
	var H Hooks[*int, SkipHooksKey]

	boom := fmt.Errorf("boom")
	H.AppendHooks(
		func(ctx context.Context, i *int) (context.Context, error) {
			*i++
			return ctx, boom
		},
		func(ctx context.Context, i *int) (context.Context, error) {
			*i++
			return ctx, nil
		},
	)

	var calls int
	if _, err := H.RunHooks(context.Background(), &calls); err != boom {
		t.Fatalf("expected %v, got %v", boom, err)
	}
	if calls != 1 {
		t.Fatalf("expected the chain to stop after 1 hook, ran %d", calls)
	}

	calls = 0
	if _, err := H.RunHooks(SkipHooks(context.Background()), &calls); err != nil {
		t.Fatal(err)
	}
	if calls != 0 {
		t.Fatalf("expected hooks to be skipped, ran %d", calls)
	}
}
