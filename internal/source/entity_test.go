package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuicksearch_FetchesByQueryParam(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/quicksearch", r.URL.Path)
		require.Equal(t, "L1", r.URL.Query().Get("license"))
		fmt.Fprint(w, `{"license_number":"L1","status":"ACTIVE"}`)
	}))
	defer srv.Close()

	client := NewClient(ClientOptions{BaseURL: srv.URL})
	qs := NewQuicksearch(client, "quicksearch")
	emit := &captureEmitter{}

	qs.FetchTask(context.Background(), "L1", emit)()

	require.Eventually(t, func() bool { return emit.len() == 1 }, testTimeout, time.Millisecond)
	events := emit.snapshot()
	assert.Equal(t, KindRecord, events[0].Kind)
	assert.Equal(t, "L1", events[0].Key)
	assert.Equal(t, "ACTIVE", events[0].Record["status"])
}

func TestProfile_FetchesByPathSegment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/profile/L2", r.URL.Path)
		fmt.Fprint(w, `{"license_number":"L2","classification":"C-36"}`)
	}))
	defer srv.Close()

	client := NewClient(ClientOptions{BaseURL: srv.URL})
	p := NewProfile(client, "profile")
	emit := &captureEmitter{}

	p.FetchTask(context.Background(), "L2", emit)()

	require.Eventually(t, func() bool { return emit.len() == 1 }, testTimeout, time.Millisecond)
	events := emit.snapshot()
	assert.Equal(t, KindRecord, events[0].Kind)
	assert.Equal(t, "C-36", events[0].Record["classification"])
}

func TestEntity_TaskReturnsBeforeFetchCompletes(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		fmt.Fprint(w, `{"license_number":"L1"}`)
	}))
	defer srv.Close()

	client := NewClient(ClientOptions{BaseURL: srv.URL})
	p := NewProfile(client, "profile")
	emit := &captureEmitter{}

	done := make(chan struct{})
	go func() {
		p.FetchTask(context.Background(), "L1", emit)()
		close(done)
	}()

	// The task must return while the server is still holding the response.
	select {
	case <-done:
	case <-time.After(testTimeout):
		t.Fatal("task blocked on fetch completion")
	}
	assert.Equal(t, 0, emit.len())

	close(release)
	require.Eventually(t, func() bool { return emit.len() == 1 }, testTimeout, time.Millisecond)
}

func TestEntity_ServerErrorEmitsFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(ClientOptions{BaseURL: srv.URL})
	p := NewProfile(client, "profile")
	emit := &captureEmitter{}

	p.FetchTask(context.Background(), "L1", emit)()

	require.Eventually(t, func() bool { return emit.len() == 1 }, testTimeout, time.Millisecond)
	events := emit.snapshot()
	assert.Equal(t, KindError, events[0].Kind)
	assert.Equal(t, "L1", events[0].Key)
	assert.True(t, IsFetchError(events[0].Err))
}

func TestEntity_BearerTokenSent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer sekrit", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"license_number":"L1"}`)
	}))
	defer srv.Close()

	client := NewClient(ClientOptions{BaseURL: srv.URL, Token: "sekrit"})
	p := NewProfile(client, "profile")
	emit := &captureEmitter{}

	p.FetchTask(context.Background(), "L1", emit)()
	require.Eventually(t, func() bool { return emit.len() == 1 }, testTimeout, time.Millisecond)
	assert.Equal(t, KindRecord, emit.snapshot()[0].Kind)
}

func TestEntity_StoredUnderRequestedKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Payload spells its key with surrounding noise.
		fmt.Fprint(w, `{"license_number":"  L1  ","status":"ACTIVE"}`)
	}))
	defer srv.Close()

	client := NewClient(ClientOptions{BaseURL: srv.URL})
	p := NewProfile(client, "profile")
	emit := &captureEmitter{}

	p.FetchTask(context.Background(), "L1", emit)()
	require.Eventually(t, func() bool { return emit.len() == 1 }, testTimeout, time.Millisecond)

	events := emit.snapshot()
	assert.Equal(t, "L1", events[0].Key)
	assert.Equal(t, "L1", events[0].Record[KeyField])
}
