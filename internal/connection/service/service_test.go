package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store,AgentClient,Deduper,AuditPublisher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"civicid/internal/agent"
	"civicid/internal/connection/metrics"
	"civicid/internal/connection/models"
	"civicid/internal/connection/service/mocks"
	"civicid/internal/connection/store"
	"civicid/pkg/domain"
	dErrors "civicid/pkg/domain-errors"
	"civicid/pkg/platform/audit"
	"civicid/pkg/platform/sentinel"
)

// =============================================================================
// Connection Service Test Suite
// =============================================================================
// The service is exercised against the in-memory store so the state machine,
// CAS and webhook handling run end to end; the agent, de-duplication and
// audit publisher are mocked.

type ServiceSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	agent     *mocks.MockAgentClient
	publisher *mocks.MockAuditPublisher
	store     *store.InMemory
	service   *Service
	ctx       context.Context
	now       time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.agent = mocks.NewMockAgentClient(s.ctrl)
	s.publisher = mocks.NewMockAuditPublisher(s.ctrl)
	s.publisher.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	s.store = store.NewInMemory()
	s.ctx = context.Background()
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.service = s.newService()
}

func (s *ServiceSuite) newService(opts ...Option) *Service {
	base := []Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(metrics.NewWithRegistry(prometheus.NewRegistry())),
		WithAuditPublisher(s.publisher),
		WithClock(func() time.Time { return s.now }),
	}
	return New(s.store, s.agent, append(base, opts...)...)
}

func (s *ServiceSuite) invite(userID domain.UserID, exchangeID string) *models.Connection {
	s.agent.EXPECT().CreateInvitation(gomock.Any(), "CivicChain Platform", "").Return(&agent.Invitation{
		ExchangeID:        exchangeID,
		AgentConnectionID: "agent-" + exchangeID,
		MyDID:             "did:peer:platform",
		URL:               "https://agent/oob?_oob=" + exchangeID,
		Payload:           []byte(`{"id":"` + exchangeID + `"}`),
	}, nil)
	res, err := s.service.CreateInvitation(s.ctx, InvitationRequest{UserID: userID})
	s.Require().NoError(err)
	return res.Connection
}

func requestMessage(thid, from string) []byte {
	return []byte(`{"id":"msg-` + thid + `","piuri":"https://atalaprism.io/mercury/connections/1.0/request","from":"` + from + `","thid":"` + thid + `"}`)
}

func (s *ServiceSuite) stored(exchangeID string) *models.Connection {
	conn, err := s.store.FindByExchangeID(s.ctx, exchangeID)
	s.Require().NoError(err)
	return conn
}

func (s *ServiceSuite) TestCreateInvitation() {
	s.Run("stores an invitation for the user", func() {
		conn := s.invite("u1", "thread-1")

		s.Equal(models.StateInvitation, conn.State)
		s.Equal(domain.UserID("u1"), conn.UserID)
		s.Equal(domain.DID("did:peer:platform"), conn.MyDID)
		s.Equal("agent-thread-1", conn.Metadata[models.MetaAgentConnID])
		s.Equal(s.now, conn.CreatedAt)

		stored := s.stored("thread-1")
		s.Equal(conn.ID, stored.ID)
	})

	s.Run("agent failure maps to agent_unavailable", func() {
		s.agent.EXPECT().CreateInvitation(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, &agent.TransportError{Op: "create_invitation", Err: errors.New("refused")})

		_, err := s.service.CreateInvitation(s.ctx, InvitationRequest{})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeAgentUnavailable))
	})

	s.Run("custom label is passed through", func() {
		s.agent.EXPECT().CreateInvitation(gomock.Any(), "Town Hall", "verify").
			Return(&agent.Invitation{ExchangeID: "thread-label", URL: "https://x"}, nil)

		res, err := s.service.CreateInvitation(s.ctx, InvitationRequest{Label: " Town Hall ", Goal: "verify"})
		s.Require().NoError(err)
		s.Equal("Town Hall", res.Connection.Metadata[models.MetaLabel])
		s.Equal("https://x", res.QRData)
	})
}

// TestWebhookScenario covers invitation -> request_received -> auto-accepted active.
func (s *ServiceSuite) TestWebhookScenario() {
	conn := s.invite("u1", "thread-1")

	res, err := s.service.ProcessWebhook(s.ctx, requestMessage("thread-1", "did:peer:abc"))
	s.Require().NoError(err)
	s.Equal(1, res.Processed)

	got := s.stored("thread-1")
	s.Equal(conn.ID, got.ID)
	s.Equal(models.StateActive, got.State)
	s.Equal(domain.DID("did:peer:abc"), got.TheirDID)
	s.Equal("auto-accepted", got.Metadata[models.MetaLastMessage])
}

// TestWebhookIdempotence verifies a redelivered message leaves the same end state.
func (s *ServiceSuite) TestWebhookIdempotence() {
	s.invite("u1", "thread-1")
	msg := requestMessage("thread-1", "did:peer:abc")

	_, err := s.service.ProcessWebhook(s.ctx, msg)
	s.Require().NoError(err)
	once := s.stored("thread-1")

	res, err := s.service.ProcessWebhook(s.ctx, msg)
	s.Require().NoError(err)
	s.Equal(1, res.Processed)
	twice := s.stored("thread-1")

	s.Equal(once.State, twice.State)
	s.Equal(once.TheirDID, twice.TheirDID)
	s.Equal(once.UpdatedAt, twice.UpdatedAt)
}

// TestWebhookOutOfOrder covers deliveries that arrive ahead of the request.
func (s *ServiceSuite) TestWebhookOutOfOrder() {
	s.Run("our own response before the request", func() {
		s.invite("u1", "thread-1")
		response := []byte(`{"piuri":"https://atalaprism.io/mercury/connections/1.0/response","from":"did:peer:platform","thid":"thread-1"}`)

		res, err := s.service.ProcessWebhook(s.ctx, response)
		s.Require().NoError(err)
		s.Equal(1, res.Processed)
		early := s.stored("thread-1")
		s.Equal(models.StateInvitation, early.State)
		s.True(early.TheirDID.IsNil())

		_, err = s.service.ProcessWebhook(s.ctx, requestMessage("thread-1", "did:peer:wallet"))
		s.Require().NoError(err)
		got := s.stored("thread-1")
		s.Equal(models.StateActive, got.State)
		s.Equal(domain.DID("did:peer:wallet"), got.TheirDID)
		s.NotEqual(got.MyDID, got.TheirDID)
	})

	s.Run("agent event naming our own DID as peer", func() {
		s.invite("u2", "thread-2")
		event := []byte(`{"type":"ConnectionUpdated","data":{"thid":"thread-2","state":"ConnectionRequestReceived","theirDid":"did:peer:platform"}}`)

		_, err := s.service.ProcessWebhook(s.ctx, event)
		s.Require().NoError(err)
		got := s.stored("thread-2")
		s.True(got.TheirDID.IsNil())
		s.NotEqual(models.StateError, got.State)
	})

	s.Run("response event before the request event", func() {
		s.invite("u3", "thread-3")
		sent := []byte(`{"type":"ConnectionUpdated","data":{"thid":"thread-3","state":"ConnectionResponseSent"}}`)
		received := []byte(`{"type":"ConnectionUpdated","data":{"thid":"thread-3","state":"ConnectionRequestReceived","theirDid":"did:peer:wallet"}}`)

		res, err := s.service.ProcessWebhook(s.ctx, sent)
		s.Require().NoError(err)
		s.Equal(1, res.Processed)
		s.Equal(0, res.Failed)
		s.Equal(models.StateInvitation, s.stored("thread-3").State)

		_, err = s.service.ProcessWebhook(s.ctx, received)
		s.Require().NoError(err)
		got := s.stored("thread-3")
		s.Equal(models.StateActive, got.State)
		s.Equal(domain.DID("did:peer:wallet"), got.TheirDID)
	})

	s.Run("late request does not regress a completed connection", func() {
		s.invite("u4", "thread-4")
		_, err := s.service.ProcessWebhook(s.ctx, requestMessage("thread-4", "did:peer:abc"))
		s.Require().NoError(err)
		complete := []byte(`{"piuri":"https://didcomm.org/didexchange/1.0/complete","from":"did:peer:abc","thid":"thread-4"}`)
		_, err = s.service.ProcessWebhook(s.ctx, complete)
		s.Require().NoError(err)
		s.Equal(models.StateCompleted, s.stored("thread-4").State)

		_, err = s.service.ProcessWebhook(s.ctx, requestMessage("thread-4", "did:peer:abc"))
		s.Require().NoError(err)
		s.Equal(models.StateCompleted, s.stored("thread-4").State)
	})
}

func (s *ServiceSuite) TestWebhookUnknownExchangeIsDropped() {
	res, err := s.service.ProcessWebhook(s.ctx, requestMessage("nobody", "did:peer:abc"))
	s.Require().NoError(err)
	s.Equal(1, res.Dropped)
	s.Equal(0, res.Processed)

	_, err = s.store.FindByExchangeID(s.ctx, "nobody")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *ServiceSuite) TestWebhookMatchesParentThread() {
	s.invite("u1", "invitation-1")
	msg := []byte(`{"id":"m1","piuri":"https://didcomm.org/connections/1.0/request","from":"did:peer:abc","thid":"other","pthid":"invitation-1"}`)

	_, err := s.service.ProcessWebhook(s.ctx, msg)
	s.Require().NoError(err)
	s.Equal(models.StateActive, s.stored("invitation-1").State)
}

func (s *ServiceSuite) TestWebhookFailureRecordsError() {
	s.Run("invalid sender DID", func() {
		s.invite("u1", "thread-bad")
		res, err := s.service.ProcessWebhook(s.ctx, requestMessage("thread-bad", "not a did"))
		s.Require().NoError(err)
		s.Equal(1, res.Failed)

		got := s.stored("thread-bad")
		s.Equal(models.StateError, got.State)
		s.NotEmpty(got.Metadata[models.MetaLastError])
	})

	s.Run("activation without peer DID waits for the request", func() {
		s.invite("u2", "thread-nodid")
		msg := []byte(`{"piuri":"https://didcomm.org/connections/1.0/response","thid":"thread-nodid"}`)
		res, err := s.service.ProcessWebhook(s.ctx, msg)
		s.Require().NoError(err)
		s.Equal(0, res.Failed)
		s.Equal(models.StateInvitation, s.stored("thread-nodid").State)

		_, err = s.service.ProcessWebhook(s.ctx, requestMessage("thread-nodid", "did:peer:late"))
		s.Require().NoError(err)
		s.Equal(models.StateActive, s.stored("thread-nodid").State)
	})

	s.Run("error is terminal", func() {
		_, err := s.service.ProcessWebhook(s.ctx, requestMessage("thread-bad", "did:peer:abc"))
		s.Require().NoError(err)
		s.Equal(models.StateError, s.stored("thread-bad").State)
	})
}

func (s *ServiceSuite) TestWebhookMalformedBody() {
	_, err := s.service.ProcessWebhook(s.ctx, []byte(`{broken`))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func (s *ServiceSuite) TestManualAcceptance() {
	var asked atomic.Int32
	s.service = s.newService(WithAcceptPolicy(AcceptPolicyFunc(func(context.Context, *models.Connection) bool {
		asked.Add(1)
		return false
	})))
	conn := s.invite("u1", "thread-1")

	_, err := s.service.ProcessWebhook(s.ctx, requestMessage("thread-1", "did:peer:abc"))
	s.Require().NoError(err)
	s.Equal(models.StateRequestReceived, s.stored("thread-1").State)
	s.Equal(int32(1), asked.Load())

	accepted, err := s.service.Accept(s.ctx, conn.ID)
	s.Require().NoError(err)
	s.Equal(models.StateActive, accepted.State)

	_, err = s.service.Accept(s.ctx, conn.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))

	s.Run("request without a peer DID cannot be accepted", func() {
		other := s.invite("u2", "thread-anon")
		event := []byte(`{"type":"ConnectionUpdated","data":{"thid":"thread-anon","state":"ConnectionRequestReceived"}}`)
		_, err := s.service.ProcessWebhook(s.ctx, event)
		s.Require().NoError(err)
		s.Equal(models.StateRequestReceived, s.stored("thread-anon").State)

		_, err = s.service.Accept(s.ctx, other.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
		s.Equal(models.StateRequestReceived, s.stored("thread-anon").State)
	})
}

func (s *ServiceSuite) TestGet() {
	_, err := s.service.Get(s.ctx, domain.NewConnectionID())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	conn := s.invite("u1", "thread-1")
	got, err := s.service.Get(s.ctx, conn.ID)
	s.Require().NoError(err)
	s.Equal("thread-1", got.ExchangeID)
}

func (s *ServiceSuite) TestLatestForUser() {
	s.invite("u1", "thread-1")
	s.now = s.now.Add(time.Minute)
	s.invite("u1", "thread-2")

	latest, err := s.service.LatestForUser(s.ctx, "u1", models.StateInvitation)
	s.Require().NoError(err)
	s.Equal("thread-2", latest.ExchangeID)

	_, err = s.service.LatestForUser(s.ctx, "u9")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

// TestConcurrentDeliveries verifies racing duplicate deliveries converge on one
// forward path with a single request_received transition.
func (s *ServiceSuite) TestConcurrentDeliveries() {
	s.invite("u1", "thread-race")
	var transitions atomic.Int32
	s.publisher = mocks.NewMockAuditPublisher(s.ctrl)
	s.publisher.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e audit.Event) error {
		if e.To == string(models.StateRequestReceived) {
			transitions.Add(1)
		}
		return nil
	}).AnyTimes()
	s.service = s.newService()

	const goroutines = 20
	var wg sync.WaitGroup
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.service.ProcessWebhook(s.ctx, requestMessage("thread-race", "did:peer:abc"))
		}()
	}
	wg.Wait()

	got := s.stored("thread-race")
	s.Equal(models.StateActive, got.State)
	s.Equal(domain.DID("did:peer:abc"), got.TheirDID)
	s.Equal(int32(1), transitions.Load())
}

// =============================================================================
// Mocked store: CAS retry and de-duplication
// =============================================================================

type AdvanceSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	store   *mocks.MockStore
	deduper *mocks.MockDeduper
	service *Service
	ctx     context.Context
}

func TestAdvanceSuite(t *testing.T) {
	suite.Run(t, new(AdvanceSuite))
}

func (s *AdvanceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.store = mocks.NewMockStore(s.ctrl)
	s.deduper = mocks.NewMockDeduper(s.ctrl)
	s.ctx = context.Background()
	s.service = New(s.store, mocks.NewMockAgentClient(s.ctrl),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithDeduper(s.deduper),
	)
}

func (s *AdvanceSuite) connection(state models.State) *models.Connection {
	conn, err := models.NewInvitation(domain.NewConnectionID(), "thread-1", "u1", "", "", nil, nil, time.Now())
	s.Require().NoError(err)
	conn.State = state
	return conn
}

func (s *AdvanceSuite) TestRetriesLostCompareAndSwap() {
	first := s.connection(models.StateInvitation)
	second := s.connection(models.StateInvitation)
	gomock.InOrder(
		s.store.EXPECT().FindByExchangeID(gomock.Any(), "thread-1").Return(first, nil),
		s.store.EXPECT().CompareAndSwapState(gomock.Any(), "thread-1", models.StateInvitation, gomock.Any()).Return(sentinel.ErrConflict),
		s.store.EXPECT().FindByExchangeID(gomock.Any(), "thread-1").Return(second, nil),
		s.store.EXPECT().CompareAndSwapState(gomock.Any(), "thread-1", models.StateInvitation, gomock.Any()).Return(nil),
	)

	got, err := s.service.Advance(s.ctx, "thread-1", models.StateRequestReceived, "did:peer:abc", "")
	s.Require().NoError(err)
	s.Equal(models.StateRequestReceived, got.State)
}

func (s *AdvanceSuite) TestGivesUpAfterRepeatedConflicts() {
	s.store.EXPECT().FindByExchangeID(gomock.Any(), "thread-1").
		DoAndReturn(func(context.Context, string) (*models.Connection, error) {
			return s.connection(models.StateInvitation), nil
		}).Times(maxCASAttempts)
	s.store.EXPECT().CompareAndSwapState(gomock.Any(), "thread-1", gomock.Any(), gomock.Any()).
		Return(sentinel.ErrConflict).Times(maxCASAttempts)

	_, err := s.service.Advance(s.ctx, "thread-1", models.StateRequestReceived, "did:peer:abc", "")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *AdvanceSuite) TestLostRaceSettlesOnNoOp() {
	gomock.InOrder(
		s.store.EXPECT().FindByExchangeID(gomock.Any(), "thread-1").Return(s.connection(models.StateInvitation), nil),
		s.store.EXPECT().CompareAndSwapState(gomock.Any(), "thread-1", models.StateInvitation, gomock.Any()).Return(sentinel.ErrConflict),
		s.store.EXPECT().FindByExchangeID(gomock.Any(), "thread-1").Return(s.connection(models.StateActive), nil),
	)

	got, err := s.service.Advance(s.ctx, "thread-1", models.StateRequestReceived, "did:peer:abc", "")
	s.Require().NoError(err)
	s.Equal(models.StateActive, got.State)
}

func (s *AdvanceSuite) TestConflictingWebhookDoesNotRecordError() {
	s.deduper.EXPECT().Claim(gomock.Any(), gomock.Any()).Return(true, nil)
	s.store.EXPECT().FindByExchangeID(gomock.Any(), "thread-1").
		DoAndReturn(func(context.Context, string) (*models.Connection, error) {
			return s.connection(models.StateInvitation), nil
		}).AnyTimes()
	s.store.EXPECT().CompareAndSwapState(gomock.Any(), "thread-1", models.StateInvitation, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, _ models.State, next *models.Connection) error {
			s.NotEqual(models.StateError, next.State)
			return sentinel.ErrConflict
		}).Times(maxCASAttempts)
	s.deduper.EXPECT().Release(gomock.Any(), gomock.Any()).Return(nil)

	res, err := s.service.ProcessWebhook(s.ctx, requestMessage("thread-1", "did:peer:abc"))
	s.Require().NoError(err)
	s.Equal(1, res.Failed)
}

func (s *AdvanceSuite) TestBackwardMoveSkipsWrite() {
	s.store.EXPECT().FindByExchangeID(gomock.Any(), "thread-1").Return(s.connection(models.StateCompleted), nil)

	got, err := s.service.Advance(s.ctx, "thread-1", models.StateRequestReceived, "did:peer:abc", "")
	s.Require().NoError(err)
	s.Equal(models.StateCompleted, got.State)
}

func (s *AdvanceSuite) TestDuplicateDeliverySkipped() {
	msg := requestMessage("thread-1", "did:peer:abc")
	s.deduper.EXPECT().Claim(gomock.Any(), gomock.Any()).Return(false, nil)

	res, err := s.service.ProcessWebhook(s.ctx, msg)
	s.Require().NoError(err)
	s.Equal(1, res.Duplicates)
	s.Equal(0, res.Processed)
}

func (s *AdvanceSuite) TestFailedMessageReleasesClaim() {
	s.deduper.EXPECT().Claim(gomock.Any(), gomock.Any()).Return(true, nil)
	s.store.EXPECT().FindByExchangeID(gomock.Any(), gomock.Any()).Return(nil, errors.New("db down")).AnyTimes()
	s.deduper.EXPECT().Release(gomock.Any(), gomock.Any()).Return(nil)

	res, err := s.service.ProcessWebhook(s.ctx, requestMessage("thread-1", "did:peer:abc"))
	s.Require().NoError(err)
	s.Equal(1, res.Failed)
}

func (s *AdvanceSuite) TestDeduperOutageDoesNotBlockProcessing() {
	s.deduper.EXPECT().Claim(gomock.Any(), gomock.Any()).Return(false, errors.New("redis down"))
	s.store.EXPECT().FindByExchangeID(gomock.Any(), gomock.Any()).Return(nil, sentinel.ErrNotFound).AnyTimes()

	res, err := s.service.ProcessWebhook(s.ctx, requestMessage("thread-1", "did:peer:abc"))
	s.Require().NoError(err)
	s.Equal(1, res.Dropped)
}
