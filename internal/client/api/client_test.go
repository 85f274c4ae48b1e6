package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/mkartavenko/taskhub/internal/client/creds"
	"github.com/mkartavenko/taskhub/internal/client/models"
	"github.com/stretchr/testify/require"
)

/*************
 * helpers
 *************/

func okEnvelope(t *testing.T, data any) string {
	t.Helper()
	b, err := json.Marshal(map[string]any{"success": true, "data": data})
	require.NoError(t, err)
	return string(b)
}

func errEnvelope(message string) string {
	return fmt.Sprintf(`{"success":false,"message":%q}`, message)
}

func seededStore(t *testing.T, access, refresh string) *creds.MemoryStore {
	t.Helper()
	s := creds.NewMemoryStore()
	require.NoError(t, s.Set(context.Background(), creds.Pair{AccessToken: access, RefreshToken: refresh}))
	return s
}

// roundTripperFunc lets tests script transport behavior without a socket.
type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

/*************
 * pipeline basics
 *************/

func TestDo_AttachesBearerToken(t *testing.T) {
	var gotAuth, gotRequestID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get("X-Request-Id")
		fmt.Fprint(w, okEnvelope(t, nil))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, seededStore(t, "A1", "R1"))
	require.NoError(t, c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/api/tasks"}, nil))

	require.Equal(t, "Bearer A1", gotAuth)
	require.NotEmpty(t, gotRequestID)
}

func TestDo_NoTokenProceedsUnauthenticated(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, okEnvelope(t, nil))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, creds.NewMemoryStore())
	require.NoError(t, c.Do(context.Background(), Request{Method: http.MethodPost, Path: "/api/auth/login"}, nil))
	require.Empty(t, gotAuth)
}

func TestDo_ServerErrorSurfacedVerbatim_NoRefresh(t *testing.T) {
	var refreshCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/auth/refresh" {
			atomic.AddInt32(&refreshCalls, 1)
		}
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, errEnvelope("title is required"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, seededStore(t, "A1", "R1"))
	err := c.Do(context.Background(), Request{Method: http.MethodPost, Path: "/api/tasks"}, nil)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
	require.Equal(t, "title is required", apiErr.Message)
	require.Zero(t, atomic.LoadInt32(&refreshCalls), "non-401 must never trigger renewal")
}

func TestDo_TransportErrorIsNetworkError_NoRefresh(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", seededStore(t, "A1", "R1")) // nothing listens here
	err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/api/tasks"}, nil)

	require.ErrorIs(t, err, ErrNetwork)
	require.NotErrorIs(t, err, ErrAuthExpired)

	// the credential pair must be untouched
	p, gerr := c.store.Get(context.Background())
	require.NoError(t, gerr)
	require.Equal(t, creds.Pair{AccessToken: "A1", RefreshToken: "R1"}, p)
}

/*************
 * renewal and replay
 *************/

// The canonical round-trip: a task list call with A1 gets 401, the refresh
// call exchanges R1 for A2, the replayed call succeeds, and the store ends
// up holding A2/R1.
func TestDo_RenewsAndReplaysOnceOn401(t *testing.T) {
	var taskCalls, refreshCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/refresh":
			atomic.AddInt32(&refreshCalls, 1)
			var body struct {
				RefreshToken string `json:"refreshToken"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Equal(t, "R1", body.RefreshToken)
			require.Empty(t, r.Header.Get("Authorization"), "refresh call must not carry a bearer token")
			fmt.Fprint(w, okEnvelope(t, map[string]string{"accessToken": "A2"}))
		case "/api/tasks":
			atomic.AddInt32(&taskCalls, 1)
			if r.Header.Get("Authorization") != "Bearer A2" {
				w.WriteHeader(http.StatusUnauthorized)
				fmt.Fprint(w, errEnvelope("token expired"))
				return
			}
			fmt.Fprint(w, okEnvelope(t, map[string]any{"tasks": []map[string]any{{"id": "t1", "title": "buy milk"}}}))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	store := seededStore(t, "A1", "R1")
	c := NewClient(srv.URL, store)

	var payload struct {
		Tasks []models.Task `json:"tasks"`
	}
	require.NoError(t, c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/api/tasks"}, &payload))

	require.Len(t, payload.Tasks, 1)
	require.Equal(t, "buy milk", payload.Tasks[0].Title)
	require.Equal(t, int32(1), atomic.LoadInt32(&refreshCalls))
	require.Equal(t, int32(2), atomic.LoadInt32(&taskCalls))

	p, err := store.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, creds.Pair{AccessToken: "A2", RefreshToken: "R1"}, p)
}

// Even when the replay itself comes back 401, there is no second renewal
// and no third attempt; the 401 surfaces as a plain APIError.
func TestDo_ReplayAtMostOnce(t *testing.T) {
	var taskCalls, refreshCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/refresh":
			atomic.AddInt32(&refreshCalls, 1)
			fmt.Fprint(w, okEnvelope(t, map[string]string{"accessToken": "A2"}))
		default:
			atomic.AddInt32(&taskCalls, 1)
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, errEnvelope("still unauthorized"))
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, seededStore(t, "A1", "R1"))
	err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/api/tasks"}, nil)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnauthorized, apiErr.Status)
	require.Equal(t, int32(1), atomic.LoadInt32(&refreshCalls))
	require.Equal(t, int32(2), atomic.LoadInt32(&taskCalls))
}

func TestDo_RefreshFailureExpiresSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/auth/refresh" {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, errEnvelope("refresh token expired"))
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, errEnvelope("token expired"))
	}))
	defer srv.Close()

	store := seededStore(t, "A1", "R1")
	c := NewClient(srv.URL, store)

	var hookCalls int32
	c.OnAuthExpired(func() { atomic.AddInt32(&hookCalls, 1) })

	err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/api/tasks"}, nil)
	require.ErrorIs(t, err, ErrAuthExpired)
	require.Equal(t, int32(1), atomic.LoadInt32(&hookCalls))

	p, gerr := store.Get(context.Background())
	require.NoError(t, gerr)
	require.Equal(t, creds.Pair{}, p, "store must hold no residue after a failed renewal")
}

// With no refresh token on hand there is nothing to renew with: the
// server's original 401 is the answer, message intact, and no refresh
// round-trip is attempted. The teardown hook still fires.
func TestDo_NoRefreshToken_SurfacesOriginal401(t *testing.T) {
	var refreshCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/auth/refresh" {
			atomic.AddInt32(&refreshCalls, 1)
		}
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, errEnvelope("token expired"))
	}))
	defer srv.Close()

	store := creds.NewMemoryStore()
	require.NoError(t, store.SetAccessToken(context.Background(), "A1")) // access token only

	c := NewClient(srv.URL, store)
	var hookCalls int32
	c.OnAuthExpired(func() { atomic.AddInt32(&hookCalls, 1) })

	err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/api/tasks"}, nil)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnauthorized, apiErr.Status)
	require.Equal(t, "token expired", apiErr.Message)
	require.NotErrorIs(t, err, ErrAuthExpired)
	require.Zero(t, atomic.LoadInt32(&refreshCalls), "no refresh token means no refresh round-trip")
	require.Equal(t, int32(1), atomic.LoadInt32(&hookCalls))
}

// A rejected login while logged out (empty store) must reach the caller as
// the server's verbatim message, not as an expired-session error: there was
// never a session to expire.
func TestDo_LoginRejectedWhileLoggedOut_SurfacesServerMessage(t *testing.T) {
	var refreshCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/auth/refresh" {
			atomic.AddInt32(&refreshCalls, 1)
		}
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, errEnvelope("Invalid email or password"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, creds.NewMemoryStore())
	err := c.Do(context.Background(), Request{Method: http.MethodPost, Path: "/api/auth/login"}, nil)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "Invalid email or password", apiErr.Message)
	require.Equal(t, "Invalid email or password", Message(err, "Login failed"))
	require.NotErrorIs(t, err, ErrAuthExpired)
	require.Zero(t, atomic.LoadInt32(&refreshCalls))
}

/*************
 * single-flight renewal
 *************/

// N concurrent requests all hit 401 while no renewal is outstanding: exactly
// one refresh call is issued and every request is replayed with the token it
// returned. A scripted transport pins the interleaving down: the first 401
// starts the refresh, the remaining 401s are answered only once that refresh
// is in flight, and the refresh response is held back until every initial
// attempt has failed. A request that reaches the renewal after it already
// settled picks up the stored token instead of refreshing again, so the
// one-refresh assertion holds regardless of goroutine scheduling.
func TestDo_ConcurrentRequestsShareOneRefresh(t *testing.T) {
	const n = 8

	var (
		firstAttempts   int32
		refreshCalls    int32
		replays         int32
		refreshInFlight = make(chan struct{})
		allFailed       = make(chan struct{})
	)

	rt := roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/api/auth/refresh"):
			if atomic.AddInt32(&refreshCalls, 1) == 1 {
				close(refreshInFlight)
			}
			<-allFailed
			return jsonResponse(http.StatusOK, `{"success":true,"data":{"accessToken":"A2"}}`), nil
		case r.Header.Get("Authorization") == "Bearer A1":
			i := atomic.AddInt32(&firstAttempts, 1)
			if i > 1 {
				<-refreshInFlight
			}
			if i == n {
				close(allFailed)
			}
			return jsonResponse(http.StatusUnauthorized, errEnvelope("token expired")), nil
		case r.Header.Get("Authorization") == "Bearer A2":
			atomic.AddInt32(&replays, 1)
			return jsonResponse(http.StatusOK, `{"success":true,"data":{"tasks":[]}}`), nil
		default:
			return jsonResponse(http.StatusForbidden, errEnvelope("unexpected token")), nil
		}
	})

	store := seededStore(t, "A1", "R1")
	c := NewClient("http://taskhub.test", store, WithHTTPClient(&http.Client{Transport: rt}))

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/api/tasks"}, nil)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "request %d", i)
	}
	require.Equal(t, int32(1), atomic.LoadInt32(&refreshCalls), "N concurrent 401s must share one refresh")
	require.Equal(t, int32(n), atomic.LoadInt32(&replays))

	p, err := store.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, "A2", p.AccessToken)
}

// When the shared refresh fails, every queued request observes the same
// terminal failure and the store is left empty. A request that reaches the
// renewal only after the failed refresh cleared the store sees the torn-down
// session directly, so no second refresh is attempted there either.
func TestDo_ConcurrentRequestsShareRefreshFailure(t *testing.T) {
	const n = 6

	var (
		firstAttempts   int32
		refreshCalls    int32
		refreshInFlight = make(chan struct{})
		allFailed       = make(chan struct{})
	)

	rt := roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		if strings.HasSuffix(r.URL.Path, "/api/auth/refresh") {
			if atomic.AddInt32(&refreshCalls, 1) == 1 {
				close(refreshInFlight)
			}
			<-allFailed
			return jsonResponse(http.StatusUnauthorized, errEnvelope("refresh token expired")), nil
		}
		i := atomic.AddInt32(&firstAttempts, 1)
		if i > 1 {
			<-refreshInFlight
		}
		if i == n {
			close(allFailed)
		}
		return jsonResponse(http.StatusUnauthorized, errEnvelope("token expired")), nil
	})

	store := seededStore(t, "A1", "R1")
	c := NewClient("http://taskhub.test", store, WithHTTPClient(&http.Client{Transport: rt}))

	var hookCalls int32
	c.OnAuthExpired(func() { atomic.AddInt32(&hookCalls, 1) })

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/api/tasks"}, nil)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.ErrorIs(t, err, ErrAuthExpired, "request %d", i)
	}
	require.Equal(t, int32(1), atomic.LoadInt32(&refreshCalls))
	require.Equal(t, int32(n), atomic.LoadInt32(&hookCalls), "each queued request tears the session down independently")

	p, err := store.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, creds.Pair{}, p)
}

// A 401 on a request that went out with an older token than the store now
// holds means a renewal already settled: the stored token is reused for the
// replay without another refresh round-trip.
func TestDo_RenewalAlreadySettled_ReusesStoredToken(t *testing.T) {
	var refreshCalls int32
	store := seededStore(t, "A1", "R1")

	rt := roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		switch r.Header.Get("Authorization") {
		case "Bearer A1":
			// simulate a renewal settling between this request going out
			// and its 401 being handled
			require.NoError(t, store.SetAccessToken(context.Background(), "A2"))
			return jsonResponse(http.StatusUnauthorized, errEnvelope("token expired")), nil
		case "Bearer A2":
			return jsonResponse(http.StatusOK, `{"success":true,"data":{"tasks":[]}}`), nil
		default:
			atomic.AddInt32(&refreshCalls, 1)
			return jsonResponse(http.StatusOK, `{"success":true,"data":{"accessToken":"A3"}}`), nil
		}
	})

	c := NewClient("http://taskhub.test", store, WithHTTPClient(&http.Client{Transport: rt}))
	require.NoError(t, c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/api/tasks"}, nil))
	require.Zero(t, atomic.LoadInt32(&refreshCalls), "a settled renewal must be reused, not repeated")

	p, err := store.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, creds.Pair{AccessToken: "A2", RefreshToken: "R1"}, p)
}

// A 401 handled after a concurrent renewal failed and emptied the store is
// a dead session: ErrAuthExpired without another refresh attempt.
func TestDo_RenewalAlreadyFailed_ExpiresWithoutRefreshCall(t *testing.T) {
	var refreshCalls int32
	store := seededStore(t, "A1", "R1")

	rt := roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		if strings.HasSuffix(r.URL.Path, "/api/auth/refresh") {
			atomic.AddInt32(&refreshCalls, 1)
			return jsonResponse(http.StatusUnauthorized, errEnvelope("refresh token expired")), nil
		}
		// simulate a concurrent renewal failing terminally while this
		// request was on the wire
		require.NoError(t, store.Clear(context.Background()))
		return jsonResponse(http.StatusUnauthorized, errEnvelope("token expired")), nil
	})

	c := NewClient("http://taskhub.test", store, WithHTTPClient(&http.Client{Transport: rt}))
	err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/api/tasks"}, nil)

	require.ErrorIs(t, err, ErrAuthExpired)
	require.Zero(t, atomic.LoadInt32(&refreshCalls))
}

/*************
 * response decoding
 *************/

func TestDecodeResponse(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "success with data", status: 200, body: `{"success":true,"data":{"user":{"id":"1"}}}`},
		{name: "success empty body", status: 204, body: ``},
		{name: "server rejection", status: 400, body: errEnvelope("bad input"), wantErr: &APIError{Status: 400, Message: "bad input"}},
		{name: "rejection without envelope", status: 500, body: `oops`, wantErr: &APIError{Status: 500}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out map[string]any
			err := decodeResponse(tt.status, []byte(tt.body), &out)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			require.Equal(t, tt.wantErr.(*APIError).Status, apiErr.Status)
			require.Equal(t, tt.wantErr.(*APIError).Message, apiErr.Message)
		})
	}
}

func TestMessage(t *testing.T) {
	require.Equal(t, "bad input", Message(&APIError{Status: 400, Message: "bad input"}, "fallback"))
	require.Equal(t, "fallback", Message(&APIError{Status: 500}, "fallback"))
	require.Equal(t, "fallback", Message(errors.New("boom"), "fallback"))
}
