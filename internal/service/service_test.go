package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/splitledger/internal/auth"
	"github.com/mmynk/splitledger/internal/events"
	"github.com/mmynk/splitledger/internal/middleware"
	"github.com/mmynk/splitledger/internal/money"
	"github.com/mmynk/splitledger/internal/rpc"
	"github.com/mmynk/splitledger/internal/storage/sqlite"
	"github.com/mmynk/splitledger/pkg/logging"
)

// recordingPublisher keeps every published event in memory.
type recordingPublisher struct {
	mu     sync.Mutex
	events []*events.Envelope
}

func (p *recordingPublisher) Publish(_ context.Context, e *events.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type testEnv struct {
	server    *httptest.Server
	auth      rpc.AuthServiceClient
	publisher *recordingPublisher
}

// testUser is a registered account with clients that send its token.
type testUser struct {
	id     string
	email  string
	token  string
	ledger rpc.LedgerServiceClient
	groups rpc.GroupServiceClient
}

// setupTestServer serves all three services over httptest with a SQLite
// store in a temp directory and real token authentication.
func setupTestServer(t *testing.T) *testEnv {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	logger := logging.Discard()
	tokens := auth.NewTokenManager("test-secret-key-with-enough-bytes", time.Hour)
	authenticator := auth.NewPasswordAuthenticator(store).WithCost(bcrypt.MinCost)
	publisher := &recordingPublisher{}

	interceptors := connect.WithInterceptors(
		middleware.RequireAuth(tokens, rpc.PublicProcedures),
		middleware.LoggingInterceptor(logger),
	)

	mux := http.NewServeMux()
	mux.Handle(rpc.NewAuthServiceHandler(NewAuthService(authenticator, tokens, store, logger), interceptors))
	mux.Handle(rpc.NewGroupServiceHandler(NewGroupService(store, logger), interceptors))
	mux.Handle(rpc.NewLedgerServiceHandler(NewLedgerService(store, publisher, logger), interceptors))

	server := httptest.NewServer(mux)
	t.Cleanup(func() {
		server.Close()
		store.Close()
	})

	return &testEnv{
		server:    server,
		auth:      rpc.NewAuthServiceClient(server.Client(), server.URL),
		publisher: publisher,
	}
}

func bearer(token string) connect.ClientOption {
	return connect.WithInterceptors(connect.UnaryInterceptorFunc(func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			req.Header().Set("Authorization", "Bearer "+token)
			return next(ctx, req)
		}
	}))
}

func (e *testEnv) register(t *testing.T, name string) *testUser {
	t.Helper()
	email := name + "@example.com"
	resp, err := e.auth.Register(context.Background(), connect.NewRequest(&rpc.RegisterRequest{
		Email:       email,
		DisplayName: name,
		Password:    "password-" + name,
	}))
	require.NoError(t, err)

	token := resp.Msg.Token
	return &testUser{
		id:     resp.Msg.User.ID,
		email:  email,
		token:  token,
		ledger: rpc.NewLedgerServiceClient(e.server.Client(), e.server.URL, bearer(token)),
		groups: rpc.NewGroupServiceClient(e.server.Client(), e.server.URL, bearer(token)),
	}
}

// setupGroup registers alice, bob and carol and puts them in one group
// created by alice.
func setupGroup(t *testing.T, env *testEnv) (groupID string, alice, bob, carol *testUser) {
	t.Helper()
	ctx := context.Background()
	alice = env.register(t, "alice")
	bob = env.register(t, "bob")
	carol = env.register(t, "carol")

	resp, err := alice.groups.CreateGroup(ctx, connect.NewRequest(&rpc.CreateGroupRequest{Name: "Trip"}))
	require.NoError(t, err)
	groupID = resp.Msg.Group.ID

	for _, u := range []*testUser{bob, carol} {
		_, err := alice.groups.AddGroupMember(ctx, connect.NewRequest(&rpc.AddGroupMemberRequest{
			GroupID: groupID,
			Email:   u.email,
		}))
		require.NoError(t, err)
	}
	return groupID, alice, bob, carol
}

// createDinner records 90.00 paid by payer, split equally among everyone.
func createDinner(t *testing.T, groupID string, payer *testUser, participants ...*testUser) *rpc.Expense {
	t.Helper()
	ids := make([]string, len(participants))
	for i, p := range participants {
		ids[i] = p.id
	}
	resp, err := payer.ledger.CreateExpense(context.Background(), connect.NewRequest(&rpc.CreateExpenseRequest{
		GroupID:      groupID,
		Description:  "Dinner",
		Amount:       money.MustParse("90.00"),
		Date:         "2024-05-01",
		Participants: ids,
	}))
	require.NoError(t, err)
	return resp.Msg.Expense
}

func requireCode(t *testing.T, want connect.Code, err error) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, want, connect.CodeOf(err), "error: %v", err)
}
