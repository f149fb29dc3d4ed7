package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/oauth2"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"estatecrm/internal/core"
)

const testClientJSON = `{"installed":{"client_id":"test","client_secret":"test","redirect_uris":["http://localhost"],"auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token"}}`

func sampleTransaction() core.Transaction {
	return core.Transaction{
		Record:      core.Record{ID: "txn_1"},
		Kind:        core.TxPayment,
		Amount:      core.Money{Cents: 860664},
		Date:        core.NewDate(2024, 2, 1),
		LoanID:      "loan_1",
		ClientID:    "cli_1",
		Description: "February instalment",
	}
}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Options{}, nil)
	if err == nil || err.Error() != "missing spreadsheet ID" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewSheetsService_MissingOAuthClient(t *testing.T) {
	_, err := newSheetsService(context.Background(), Options{})
	expectedMsg := "missing oauth client (set GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE)"
	if err == nil || err.Error() != expectedMsg {
		t.Errorf("expected %q, got %v", expectedMsg, err)
	}
}

func TestNewSheetsService_MissingOAuthToken(t *testing.T) {
	_, err := newSheetsService(context.Background(), Options{OAuthClientJSON: testClientJSON})
	expectedMsg := "missing oauth token (set GOOGLE_OAUTH_TOKEN_JSON or GOOGLE_OAUTH_TOKEN_FILE)"
	if err == nil || err.Error() != expectedMsg {
		t.Errorf("expected %q, got %v", expectedMsg, err)
	}
}

func TestOAuthCredentialParsing(t *testing.T) {
	_, err := newSheetsService(context.Background(), Options{OAuthClientJSON: testClientJSON, OAuthTokenJSON: "invalid-json"})
	if err == nil || !strings.Contains(err.Error(), "oauth token") {
		t.Errorf("expected token parsing error, got: %v", err)
	}

	_, err = newSheetsService(context.Background(), Options{OAuthClientJSON: "invalid-json", OAuthTokenJSON: `{"access_token":"test"}`})
	if err == nil || !strings.Contains(err.Error(), "oauth config") {
		t.Errorf("expected client parsing error, got: %v", err)
	}

	dir := t.TempDir()
	clientFile := filepath.Join(dir, "client.json")
	tokenFile := filepath.Join(dir, "token.json")
	if err := os.WriteFile(clientFile, []byte(testClientJSON), 0600); err != nil {
		t.Fatal(err)
	}
	if err := SaveToken(tokenFile, &oauth2.Token{AccessToken: "test", TokenType: "Bearer"}); err != nil {
		t.Fatalf("SaveToken() error = %v", err)
	}
	if _, err := newSheetsService(context.Background(), Options{OAuthClientFile: clientFile, OAuthTokenFile: tokenFile}); err != nil {
		t.Errorf("newSheetsService(files) error = %v", err)
	}
}

func TestJsonUnmarshalIndirection(t *testing.T) {
	var token oauth2.Token
	if err := jsonUnmarshal([]byte(`{"access_token":"test","token_type":"Bearer"}`), &token); err != nil {
		t.Fatalf("jsonUnmarshal failed: %v", err)
	}
	if token.AccessToken != "test" {
		t.Errorf("expected access token 'test', got %s", token.AccessToken)
	}
	if err := jsonUnmarshal([]byte(`{invalid json}`), &token); err == nil {
		t.Fatal("expected error with invalid JSON")
	}
}

func TestLedgerRow(t *testing.T) {
	row := ledgerRow(sampleTransaction())
	want := []any{"2024-02-01", "payment", "8606.64", "loan_1", "cli_1", "", "February instalment", "txn_1"}
	if len(row) != len(LedgerHeader) {
		t.Fatalf("row has %d cells, header %d", len(row), len(LedgerHeader))
	}
	for i := range want {
		if row[i] != want[i] {
			t.Errorf("cell %d (%s) = %v, want %v", i, LedgerHeader[i], row[i], want[i])
		}
	}
}

func TestLedgerRange(t *testing.T) {
	tests := map[string]string{
		"Ledger":      "Ledger!A:H",
		"2024 Ledger": "'2024 Ledger'!A:H",
		"Bob's":       "'Bob''s'!A:H",
	}
	for sheet, want := range tests {
		if got := ledgerRange(sheet); got != want {
			t.Errorf("ledgerRange(%q) = %q, want %q", sheet, got, want)
		}
	}
}

func TestAppendTransaction(t *testing.T) {
	var got gsheet.ValueRange
	var path, inputOption string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		inputOption = r.URL.Query().Get("valueInputOption")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"spreadsheetId":"sheet-1","updates":{"updatedRange":"Ledger!A5:H5","updatedRows":1}}`))
	}))
	defer srv.Close()

	svc, err := gsheet.NewService(context.Background(),
		goption.WithHTTPClient(srv.Client()),
		goption.WithEndpoint(srv.URL+"/"))
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	c := NewWithService(svc, "sheet-1", "", nil)

	ref, err := c.AppendTransaction(context.Background(), sampleTransaction())
	if err != nil {
		t.Fatalf("AppendTransaction() error = %v", err)
	}
	if ref != "Ledger!A5:H5" {
		t.Errorf("ref = %q, want Ledger!A5:H5", ref)
	}
	if !strings.HasSuffix(path, ":append") || !strings.Contains(path, "sheet-1") {
		t.Errorf("unexpected path %q", path)
	}
	if inputOption != "USER_ENTERED" {
		t.Errorf("valueInputOption = %q", inputOption)
	}
	if len(got.Values) != 1 || got.Values[0][2] != "8606.64" {
		t.Errorf("unexpected values %v", got.Values)
	}
}

func TestAppendTransaction_Validates(t *testing.T) {
	c := NewWithService(nil, "sheet-1", "Ledger", nil)
	bad := sampleTransaction()
	bad.LoanID = ""
	if _, err := c.AppendTransaction(context.Background(), bad); err == nil {
		t.Fatal("expected validation error")
	}
	if _, err := c.AppendTransaction(context.Background(), sampleTransaction()); err == nil {
		t.Fatal("expected error without a service")
	}
}
