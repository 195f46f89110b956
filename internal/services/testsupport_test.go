package services_test

import (
	"context"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/lottoplay/momo-backend/internal/models"
	"github.com/lottoplay/momo-backend/internal/repositories"
	"github.com/lottoplay/momo-backend/pkg/momo"
)

// fakeTxnRepo is an in-memory PaymentTransactionRepository that honors
// the same terminal guard as the mongo implementation.
type fakeTxnRepo struct {
	mu          sync.Mutex
	txns        map[string]*models.PaymentTransaction
	createCalls int
}

func newFakeTxnRepo() *fakeTxnRepo {
	return &fakeTxnRepo{txns: map[string]*models.PaymentTransaction{}}
}

func (r *fakeTxnRepo) Create(ctx context.Context, txn *models.PaymentTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.createCalls++
	cp := *txn
	r.txns[txn.ID] = &cp
	return nil
}

func (r *fakeTxnRepo) FindByID(ctx context.Context, id string) (*models.PaymentTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	txn, ok := r.txns[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	cp := *txn
	return &cp, nil
}

func (r *fakeTxnRepo) FindByProviderRef(ctx context.Context, ref string) (*models.PaymentTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, txn := range r.txns {
		if txn.ProviderTransactionID == ref {
			cp := *txn
			return &cp, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (r *fakeTxnRepo) FindByUserID(ctx context.Context, userID string, page, limit int) ([]*models.PaymentTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.PaymentTransaction
	for _, txn := range r.txns {
		if txn.UserID == userID {
			cp := *txn
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeTxnRepo) FindStuck(ctx context.Context, q repositories.StuckQuery) ([]*models.PaymentTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.PaymentTransaction
	for _, txn := range r.txns {
		if txn.Status != models.StatusPending && txn.Status != models.StatusProcessing {
			continue
		}
		if txn.ProviderTransactionID == "" {
			continue
		}
		if !txn.CreatedAt.Before(q.Cutoff) {
			continue
		}
		if q.UserID != "" && txn.UserID != q.UserID {
			continue
		}
		cp := *txn
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (r *fakeTxnRepo) ApplyStatus(ctx context.Context, id string, update repositories.StatusUpdate) (*models.PaymentTransaction, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	txn, ok := r.txns[id]
	if !ok {
		return nil, false, mongo.ErrNoDocuments
	}
	if txn.Status.IsTerminal() {
		cp := *txn
		return &cp, false, nil
	}
	txn.Status = update.Status
	if update.ProviderStatus != "" {
		txn.ProviderStatus = update.ProviderStatus
	}
	if update.ErrorMessage != "" {
		txn.ErrorMessage = update.ErrorMessage
	}
	if update.CompletedAt != nil {
		txn.CompletedAt = update.CompletedAt
	}
	if update.FailedAt != nil {
		txn.FailedAt = update.FailedAt
	}
	cp := *txn
	return &cp, true, nil
}

func (r *fakeTxnRepo) MarkBackgroundCheck(ctx context.Context, id string, checkErr string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	txn, ok := r.txns[id]
	if !ok {
		return mongo.ErrNoDocuments
	}
	txn.BackgroundCheckCount++
	if checkErr != "" {
		txn.ErrorMessage = checkErr
	}
	return nil
}

func (r *fakeTxnRepo) SetProviderRef(ctx context.Context, id, ref, providerStatus string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	txn, ok := r.txns[id]
	if !ok {
		return mongo.ErrNoDocuments
	}
	txn.ProviderTransactionID = ref
	txn.ProviderStatus = providerStatus
	return nil
}

func (r *fakeTxnRepo) get(id string) *models.PaymentTransaction {
	r.mu.Lock()
	defer r.mu.Unlock()
	if txn, ok := r.txns[id]; ok {
		cp := *txn
		return &cp
	}
	return nil
}

// fakeUserRepo serves a fixed set of users.
type fakeUserRepo struct {
	users map[string]*models.User
}

func newFakeUserRepo(users ...*models.User) *fakeUserRepo {
	r := &fakeUserRepo{users: map[string]*models.User{}}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *fakeUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := r.users[id]; ok {
		return u, nil
	}
	return nil, mongo.ErrNoDocuments
}

// fakeGateway scripts gateway behavior and counts calls.
type fakeGateway struct {
	mu sync.Mutex

	initiateCalls int
	queryCalls    int

	initiateResp *momo.GatewayResponse
	initiateErr  error

	// queryFn decides the response per provider transaction id.
	queryFn func(providerTransactionID string) (*momo.GatewayResponse, error)

	noCreds bool
}

func (g *fakeGateway) Initiate(ctx context.Context, req momo.InitiateRequest) (*momo.GatewayResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.initiateCalls++
	if g.initiateErr != nil {
		return nil, g.initiateErr
	}
	if g.initiateResp != nil {
		return g.initiateResp, nil
	}
	return &momo.GatewayResponse{
		Status: "PENDING",
		Data: momo.GatewayData{
			ID:      "PROV-" + req.OrderID,
			Status:  "PENDING",
			Amount:  req.Amount,
			OrderID: req.OrderID,
			Phone:   req.Phone,
		},
	}, nil
}

func (g *fakeGateway) QueryStatus(ctx context.Context, providerTransactionID string) (*momo.GatewayResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.queryCalls++
	if g.queryFn != nil {
		return g.queryFn(providerTransactionID)
	}
	return &momo.GatewayResponse{
		Status: "PENDING",
		Data:   momo.GatewayData{ID: providerTransactionID, Status: "PENDING"},
	}, nil
}

func (g *fakeGateway) HasCredentials() bool {
	return !g.noCreds
}

func (g *fakeGateway) calls() (initiate, query int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.initiateCalls, g.queryCalls
}
