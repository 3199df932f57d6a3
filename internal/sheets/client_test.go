package sheets

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"net/http"
	"net/url"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"

	"github.com/JonMunkholm/sheetstore/internal/metrics"
	"github.com/JonMunkholm/sheetstore/internal/sheets/mocks"
)

func fastPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   time.Millisecond,
		MaxDelay:    2 * time.Millisecond,
		CallTimeout: time.Second,
		Jitter:      0,
	}
}

func newTestClient(t *testing.T) (*Client, *mocks.MockAPI, *metrics.Metrics) {
	t.Helper()
	ctrl := gomock.NewController(t)
	api := mocks.NewMockAPI(ctrl)
	m := metrics.New(prometheus.NewRegistry())
	return New(api, WithRetryPolicy(fastPolicy()), WithMetrics(m)), api, m
}

func rateLimited() error {
	return &googleapi.Error{Code: http.StatusTooManyRequests, Message: "quota"}
}

func TestEnsureTable_CreatesTabAndHeader(t *testing.T) {
	c, api, _ := newTestClient(t)
	ctx := context.Background()
	header := []string{"id", "name", "status"}

	gomock.InOrder(
		api.EXPECT().ListSheets(gomock.Any()).Return(map[string]int64{}, nil),
		api.EXPECT().AddSheet(gomock.Any(), "sponsors").Return(int64(7), nil),
		api.EXPECT().GetValues(gomock.Any(), "'sponsors'!A1:C1").Return(nil, nil),
		api.EXPECT().UpdateValues(gomock.Any(), "'sponsors'!A1:C1", [][]string{header}).Return(nil),
	)

	require.NoError(t, c.EnsureTable(ctx, "sponsors", header))
}

func TestEnsureTable_IdempotentWhenProvisioned(t *testing.T) {
	c, api, _ := newTestClient(t)
	ctx := context.Background()
	header := []string{"id", "name"}

	api.EXPECT().ListSheets(gomock.Any()).Return(map[string]int64{"people": 3}, nil).Times(1)
	api.EXPECT().GetValues(gomock.Any(), "'people'!A1:B1").
		Return([][]string{{"id", "name"}}, nil).Times(2)
	// No AddSheet and no UpdateValues expected.

	require.NoError(t, c.EnsureTable(ctx, "people", header))
	require.NoError(t, c.EnsureTable(ctx, "people", header))
}

func TestEnsureTable_HeaderMismatch(t *testing.T) {
	c, api, _ := newTestClient(t)

	api.EXPECT().ListSheets(gomock.Any()).Return(map[string]int64{"people": 3}, nil)
	api.EXPECT().GetValues(gomock.Any(), gomock.Any()).Return([][]string{{"id", "full_name"}}, nil)

	err := c.EnsureTable(context.Background(), "people", []string{"id", "name"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHeaderMismatch)
}

func TestEnsureTable_ConcurrentCreateTolerated(t *testing.T) {
	c, api, _ := newTestClient(t)
	conflict := &googleapi.Error{Code: http.StatusBadRequest, Message: "already exists"}

	gomock.InOrder(
		api.EXPECT().ListSheets(gomock.Any()).Return(map[string]int64{}, nil),
		api.EXPECT().AddSheet(gomock.Any(), "people").Return(int64(0), conflict),
		api.EXPECT().ListSheets(gomock.Any()).Return(map[string]int64{"people": 9}, nil),
		api.EXPECT().GetValues(gomock.Any(), gomock.Any()).Return([][]string{{"id"}}, nil),
	)

	require.NoError(t, c.EnsureTable(context.Background(), "people", []string{"id"}))
}

func TestDo_RetriesRateLimitThenSucceeds(t *testing.T) {
	c, api, m := newTestClient(t)

	gomock.InOrder(
		api.EXPECT().GetValues(gomock.Any(), "'people'").Return(nil, rateLimited()).Times(3),
		api.EXPECT().GetValues(gomock.Any(), "'people'").
			Return([][]string{{"id", "name"}, {"PER-0001", "Ada"}}, nil),
	)

	rows, err := c.ReadAll(context.Background(), "people")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"PER-0001", "Ada"}}, rows)
	assert.Equal(t, float64(3), testutil.ToFloat64(m.SheetsRetries.WithLabelValues("read_all")))
}

func TestDo_NonTransientNotRetried(t *testing.T) {
	c, api, _ := newTestClient(t)
	forbidden := &googleapi.Error{Code: http.StatusForbidden, Message: "caller lacks permission"}

	api.EXPECT().GetValues(gomock.Any(), gomock.Any()).Return(nil, forbidden).Times(1)

	_, err := c.ReadAll(context.Background(), "people")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnavailable)

	var gerr *googleapi.Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, http.StatusForbidden, gerr.Code)
}

func TestDo_ExhaustedRetriesAreUnavailable(t *testing.T) {
	c, api, _ := newTestClient(t)

	api.EXPECT().AppendValues(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&googleapi.Error{Code: http.StatusServiceUnavailable}).Times(5)

	err := c.AppendRow(context.Background(), "people", []string{"PER-0001"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestDo_CancelledContextStops(t *testing.T) {
	c, api, _ := newTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())

	api.EXPECT().GetValues(gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, string) ([][]string, error) {
			cancel()
			return nil, rateLimited()
		}).Times(1)

	_, err := c.ReadAll(ctx, "people")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAppendRows_Batches(t *testing.T) {
	ctrl := gomock.NewController(t)
	api := mocks.NewMockAPI(ctrl)
	c := New(api, WithRetryPolicy(fastPolicy()), WithBatchSize(2))

	rows := [][]string{{"a"}, {"b"}, {"c"}, {"d"}, {"e"}}
	gomock.InOrder(
		api.EXPECT().AppendValues(gomock.Any(), "'audit_log_entries'!A1", rows[0:2]).Return(nil),
		api.EXPECT().AppendValues(gomock.Any(), "'audit_log_entries'!A1", rows[2:4]).Return(nil),
		api.EXPECT().AppendValues(gomock.Any(), "'audit_log_entries'!A1", rows[4:5]).Return(nil),
	)

	require.NoError(t, c.AppendRows(context.Background(), "audit_log_entries", rows))
}

func TestUpdateRow_Addressing(t *testing.T) {
	c, api, _ := newTestClient(t)

	// Data row 0 lives on sheet row 2, below the header.
	api.EXPECT().UpdateValues(gomock.Any(), "'people'!A2:C2", [][]string{{"PER-0001", "Ada", "x"}}).Return(nil)
	api.EXPECT().UpdateValues(gomock.Any(), "'people'!A11:C11", gomock.Any()).Return(nil)

	require.NoError(t, c.UpdateRow(context.Background(), "people", 0, []string{"PER-0001", "Ada", "x"}))
	require.NoError(t, c.UpdateRow(context.Background(), "people", 9, []string{"a", "b", "c"}))
	assert.Error(t, c.UpdateRow(context.Background(), "people", -1, []string{"a"}))
}

func TestDeleteRow_Addressing(t *testing.T) {
	c, api, _ := newTestClient(t)

	api.EXPECT().ListSheets(gomock.Any()).Return(map[string]int64{"screenings": 55}, nil)
	api.EXPECT().DeleteRows(gomock.Any(), int64(55), int64(4), int64(5)).Return(nil)

	require.NoError(t, c.DeleteRow(context.Background(), "screenings", 3))
}

func TestDeleteRow_UnknownTab(t *testing.T) {
	c, api, _ := newTestClient(t)

	api.EXPECT().ListSheets(gomock.Any()).Return(map[string]int64{}, nil).Times(2)

	err := c.DeleteRow(context.Background(), "missing", 0)
	assert.ErrorIs(t, err, ErrNoSuchTable)
}

const tokenURL = "https://oauth2.googleapis.com/token"

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestReadAll_BadCredentialsNotRetried(t *testing.T) {
	c, api, _ := newTestClient(t)

	tokenErr := &url.Error{Op: "Get", URL: tokenURL, Err: &oauth2.RetrieveError{ErrorCode: "invalid_grant"}}
	api.EXPECT().GetValues(gomock.Any(), "'people'").Return(nil, tokenErr).Times(1)

	_, err := c.ReadAll(context.Background(), "people")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnavailable)
	var re *oauth2.RetrieveError
	assert.ErrorAs(t, err, &re)
}

func TestReadAll_MissingTab(t *testing.T) {
	c, api, _ := newTestClient(t)

	badRange := &googleapi.Error{Code: http.StatusBadRequest, Message: "Unable to parse range: 'people'"}
	api.EXPECT().GetValues(gomock.Any(), "'people'").Return(nil, badRange)
	api.EXPECT().ListSheets(gomock.Any()).Return(map[string]int64{"sponsors": 1}, nil).Times(2)

	_, err := c.ReadAll(context.Background(), "people")
	assert.ErrorIs(t, err, ErrNoSuchTable)
}

func TestReadAll_OtherBadRequestPassesThrough(t *testing.T) {
	c, api, _ := newTestClient(t)

	badRange := &googleapi.Error{Code: http.StatusBadRequest, Message: "Invalid value"}
	api.EXPECT().GetValues(gomock.Any(), "'people'").Return(nil, badRange)
	api.EXPECT().ListSheets(gomock.Any()).Return(map[string]int64{"people": 1}, nil)

	_, err := c.ReadAll(context.Background(), "people")
	var gerr *googleapi.Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, http.StatusBadRequest, gerr.Code)
	assert.NotErrorIs(t, err, ErrNoSuchTable)
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"429", rateLimited(), true},
		{"500", &googleapi.Error{Code: 500}, true},
		{"404", &googleapi.Error{Code: 404}, false},
		{"403 quota", &googleapi.Error{Code: 403, Errors: []googleapi.ErrorItem{{Reason: "userRateLimitExceeded"}}}, true},
		{"403 auth", &googleapi.Error{Code: 403, Errors: []googleapi.ErrorItem{{Reason: "forbidden"}}}, false},
		{"deadline", context.DeadlineExceeded, true},
		{"plain", errors.New("boom"), false},
		{"token refused", &url.Error{Op: "Get", URL: tokenURL, Err: &oauth2.RetrieveError{ErrorCode: "invalid_grant"}}, false},
		{"untrusted cert", &url.Error{Op: "Get", URL: tokenURL, Err: &tls.CertificateVerificationError{Err: x509.UnknownAuthorityError{}}}, false},
		{"nxdomain", &url.Error{Op: "Get", URL: tokenURL, Err: &net.DNSError{Err: "no such host", Name: "sheets.example", IsNotFound: true}}, false},
		{"conn refused", &url.Error{Op: "Get", URL: tokenURL, Err: &net.OpError{Op: "dial", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}}, true},
		{"conn reset", &net.OpError{Op: "read", Err: os.NewSyscallError("read", syscall.ECONNRESET)}, true},
		{"net timeout", &url.Error{Op: "Get", URL: tokenURL, Err: timeoutErr{}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestColumnLetter(t *testing.T) {
	cases := map[int]string{1: "A", 2: "B", 26: "Z", 27: "AA", 52: "AZ", 53: "BA", 702: "ZZ", 703: "AAA"}
	for n, want := range cases {
		assert.Equal(t, want, columnLetter(n), "columnLetter(%d)", n)
	}
}

func TestQuoteSheet(t *testing.T) {
	assert.Equal(t, "'people'", quoteSheet("people"))
	assert.Equal(t, "'o''brien'", quoteSheet("o'brien"))
}
