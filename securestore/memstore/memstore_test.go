package memstore_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/denis-mitin/go-identity-sdk/securestore"
	"github.com/denis-mitin/go-identity-sdk/securestore/memstore"
)

const (
	testName  = "session"
	testScope = "com.identity.sdk"
)

func TestPutGetRoundTrip(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()
	payload := []byte(`{"token":"secret-bytes"}`)

	require.NoError(t, store.Put(ctx, testName, testScope, payload, securestore.PresenceNone))

	got, err := store.Get(ctx, testName, testScope, "")
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestPutDuplicate(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, testName, testScope, []byte("a"), securestore.PresenceNone))
	err := store.Put(ctx, testName, testScope, []byte("b"), securestore.PresenceNone)
	require.ErrorIs(t, err, securestore.ErrDuplicate)
}

func TestGetAbsent(t *testing.T) {
	store := memstore.New()
	_, err := store.Get(context.Background(), testName, testScope, "")
	require.ErrorIs(t, err, securestore.ErrNotFound)
}

func TestUpdateReplacesPayload(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, testName, testScope, []byte("old"), securestore.PresenceNone))
	require.NoError(t, store.Update(ctx, testName, testScope, []byte("new"), ""))

	got, err := store.Get(ctx, testName, testScope, "")
	require.NoError(t, err)
	require.Equal(t, []byte("new"), got)
}

func TestUpdateAbsent(t *testing.T) {
	store := memstore.New()
	err := store.Update(context.Background(), testName, testScope, []byte("x"), "")
	require.ErrorIs(t, err, securestore.ErrNotFound)
}

func TestDelete(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, testName, testScope, []byte("x"), securestore.PresenceNone))
	require.NoError(t, store.Delete(ctx, testName, testScope))

	_, err := store.Get(ctx, testName, testScope, "")
	require.ErrorIs(t, err, securestore.ErrNotFound)

	require.ErrorIs(t, store.Delete(ctx, testName, testScope), securestore.ErrNotFound)
}

func TestRequiredPresenceDenied(t *testing.T) {
	denied := memstore.New(memstore.WithChallenger(func(context.Context, string) error {
		return securestore.ErrPresenceDenied
	}))
	ctx := context.Background()

	err := denied.Put(ctx, testName, testScope, []byte("x"), securestore.PresenceRequired)
	require.ErrorIs(t, err, securestore.ErrPresenceDenied)
}

func TestRequiredPresenceChallengesOnGet(t *testing.T) {
	allow := true
	store := memstore.New(memstore.WithChallenger(func(context.Context, string) error {
		if allow {
			return nil
		}
		return securestore.ErrPresenceDenied
	}))
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, testName, testScope, []byte("x"), securestore.PresenceRequired))

	allow = false
	_, err := store.Get(ctx, testName, testScope, "unlock")
	require.ErrorIs(t, err, securestore.ErrPresenceDenied)

	allow = true
	got, err := store.Get(ctx, testName, testScope, "unlock")
	require.NoError(t, err)
	require.Equal(t, []byte("x"), got)
}

func TestPreferredPresenceWithoutChallengeStaysReadable(t *testing.T) {
	// Written without a challenger: a preferred record never retro-challenges.
	store := memstore.New()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, testName, testScope, []byte("x"), securestore.PresencePreferred))

	got, err := store.Get(ctx, testName, testScope, "unlock")
	require.NoError(t, err)
	require.Equal(t, []byte("x"), got)
}

func TestConcurrentGetAndUpdate(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, testName, testScope, []byte("value-0"), securestore.PresenceNone))

	// Readers must only ever observe a complete written payload; the race
	// detector flags any unsynchronized overlap with Update.
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		value := []byte(fmt.Sprintf("value-%d", i))
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, store.Update(ctx, testName, testScope, value, ""))
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := store.Get(ctx, testName, testScope, "")
			require.NoError(t, err)
			require.Regexp(t, `^value-\d+$`, string(got))
		}()
	}
	wg.Wait()
}
