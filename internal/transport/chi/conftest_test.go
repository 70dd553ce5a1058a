package chi

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/faqbot/internal/domain/conversation"
	healthuc "github.com/kailas-cloud/faqbot/internal/usecase/health"
	"github.com/kailas-cloud/faqbot/internal/usecase/pipeline"
	"github.com/kailas-cloud/faqbot/internal/usecase/retrieval"
)

// --- Fakes ---

type fakeConversations struct {
	reply     pipeline.Reply
	state     *conversation.State
	cancelled bool
	err       error
	reloadErr error
	reloads   int
	gotUser   string
	gotText   string
	panics    bool
}

func (f *fakeConversations) HandleMessage(_ context.Context, userID, text string) pipeline.Reply {
	if f.panics {
		panic("boom")
	}
	f.gotUser, f.gotText = userID, text
	return f.reply
}

func (f *fakeConversations) Dialog(_ context.Context, userID string) (*conversation.State, error) {
	f.gotUser = userID
	return f.state, f.err
}

func (f *fakeConversations) Cancel(_ context.Context, userID string) (bool, error) {
	f.gotUser = userID
	return f.cancelled, f.err
}

func (f *fakeConversations) ReloadCatalogs(context.Context) error {
	f.reloads++
	return f.reloadErr
}

type fakeDocuments struct {
	res retrieval.IngestResult
	err error
	got retrieval.IngestRequest
}

func (f *fakeDocuments) Ingest(_ context.Context, req retrieval.IngestRequest) (retrieval.IngestResult, error) {
	f.got = req
	return f.res, f.err
}

type fakeHealth struct {
	report healthuc.Report
}

func (f *fakeHealth) Check(context.Context) healthuc.Report { return f.report }

// --- Helpers ---

func newTestRouter(conv Conversations, docs Documents, health HealthChecker, apiKeys ...string) http.Handler {
	if health == nil {
		health = &fakeHealth{report: healthuc.Report{Status: healthuc.Healthy}}
	}
	return NewRouter(NewServer(conv, docs, health, zap.NewNop()), apiKeys, zap.NewNop())
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader = http.NoBody
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}
