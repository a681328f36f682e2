//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"

	"github.com/tomymiron/ETH-Global/config"
	"github.com/tomymiron/ETH-Global/internal/db"
	"github.com/tomymiron/ETH-Global/internal/server"
)

const (
	serverPort = 18080
)

func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	root, err := repoRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to locate repo root: %v\n", err)
		os.Exit(1)
	}

	if err := dockerCompose(ctx, root, "up", "-d"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start docker compose: %v\n", err)
		os.Exit(1)
	}

	setTestEnv(root)

	if err := waitForPostgres(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "postgres not ready: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	if err := runMigrations(root); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	srv, err := startServer(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	if err := waitForHealth(ctx, baseURL+"/healthz"); err != nil {
		fmt.Fprintf(os.Stderr, "server not healthy: %v\n", err)
		_ = srv.Shutdown(context.Background())
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	code := m.Run()

	_ = srv.Shutdown(context.Background())
	_ = dockerCompose(context.Background(), root, "down")
	os.Exit(code)
}

type webhookResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type paymentResponse struct {
	ID           int64  `json:"id"`
	TxID         string `json:"tx_id"`
	Asset        string `json:"asset"`
	Network      string `json:"network"`
	PayerAddress string `json:"payer_address"`
	Status       string `json:"status"`
}

func TestPaymentWebhookLifecycle(t *testing.T) {
	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	txID := fmt.Sprintf("0x%x", time.Now().UnixNano())

	payload := map[string]any{
		"event":  "YELLOW_PAYMENT_SUCCESS",
		"txId":   txID,
		"amount": "0.25",
		"metadata": map[string]any{
			"payerAddress": "0xpayer",
			"eventId":      "12",
			"userId":       34,
		},
	}

	first := postWebhook(t, baseURL, payload)
	if !first.Success || first.Message != "Pago procesado y ticket creado exitosamente" {
		t.Fatalf("unexpected first delivery: %+v", first)
	}
	var receipt struct {
		PaymentID int64  `json:"paymentId"`
		TicketID  *int64 `json:"ticketId"`
		TxID      string `json:"txId"`
	}
	if err := json.Unmarshal(first.Data, &receipt); err != nil {
		t.Fatalf("decode receipt: %v", err)
	}
	if receipt.PaymentID == 0 || receipt.TicketID == nil || receipt.TxID != txID {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}

	second := postWebhook(t, baseURL, payload)
	if !second.Success || second.Message != "Pago ya procesado" {
		t.Fatalf("expected duplicate acknowledgement, got %+v", second)
	}

	if count := countRows(t, "SELECT COUNT(*) FROM tickets t JOIN payments p ON p.id = t.payment_id WHERE p.tx_id = $1", txID); count != 1 {
		t.Fatalf("expected one ticket, got %d", count)
	}

	payment := getPayment(t, baseURL, txID, http.StatusOK)
	if payment.Asset != "ETH" || payment.Network != "Yellow Network" || payment.Status != "completed" {
		t.Fatalf("unexpected payment: %+v", payment)
	}

	getPayment(t, baseURL, "0xmissing", http.StatusNotFound)
}

func TestPaymentWebhookWithoutTicket(t *testing.T) {
	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	txID := fmt.Sprintf("0xnt%x", time.Now().UnixNano())

	resp := postWebhook(t, baseURL, map[string]any{
		"event":    "YELLOW_PAYMENT_SUCCESS",
		"txId":     txID,
		"amount":   1,
		"metadata": map[string]any{"payerAddress": "0xpayer"},
	})
	if !resp.Success || resp.Message != "Pago procesado exitosamente (sin ticket - eventId o userId no proporcionado)" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if count := countRows(t, "SELECT COUNT(*) FROM tickets t JOIN payments p ON p.id = t.payment_id WHERE p.tx_id = $1", txID); count != 0 {
		t.Fatalf("expected no ticket, got %d", count)
	}
}

func postWebhook(t *testing.T, baseURL string, payload map[string]any) webhookResponse {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	resp, err := http.Post(baseURL+"/payments/webhook", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post webhook: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected webhook status %d", resp.StatusCode)
	}
	var out webhookResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode webhook response: %v", err)
	}
	return out
}

func getPayment(t *testing.T, baseURL, txID string, wantStatus int) paymentResponse {
	t.Helper()
	resp, err := http.Get(baseURL + "/payments/status?txId=" + txID)
	if err != nil {
		t.Fatalf("get payment: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		t.Fatalf("expected status %d, got %d", wantStatus, resp.StatusCode)
	}
	var out paymentResponse
	if wantStatus == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			t.Fatalf("decode payment: %v", err)
		}
	}
	return out
}

func countRows(t *testing.T, query string, args ...any) int {
	t.Helper()
	conn, err := sql.Open("postgres", db.BuildURL(config.LoadConfig().Database))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer conn.Close()

	var count int
	if err := conn.QueryRow(query, args...).Scan(&count); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	return count
}

func setTestEnv(root string) {
	_ = os.Setenv("SECRET_KEY", "test-session-secret")
	_ = os.Setenv("RECOVER_PASS_KEY", "test-recover-secret")
	_ = os.Setenv("SERVER_PORT", fmt.Sprintf("%d", serverPort))
	_ = os.Setenv("DB_HOST", "localhost")
	_ = os.Setenv("DB_PORT", "5432")
	_ = os.Setenv("DB_USER", "previate")
	_ = os.Setenv("DB_PASSWORD", "previate")
	_ = os.Setenv("DB_NAME", "previate")
	_ = os.Setenv("DB_USE_SSL", "false")
	_ = os.Setenv("REDIS_ADDR", "localhost:6379")
	_ = os.Setenv("STORAGE_BACKEND", "local")
	_ = os.Setenv("STORAGE_LOCAL_DIR", filepath.Join(os.TempDir(), "previate-e2e-images"))
	_ = os.Setenv("MAIL_TEMPLATE_DIR", filepath.Join(root, "emails"))
	_ = os.Setenv("MAIL_DEFAULT_TEMPLATE_DIR", filepath.Join(root, "emails"))
}

func waitForPostgres(ctx context.Context) error {
	conn, err := sql.Open("postgres", db.BuildURL(config.LoadConfig().Database))
	if err != nil {
		return err
	}
	defer conn.Close()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := conn.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("postgres ping timeout: %w", err)
		case <-ticker.C:
		}
	}
}

func waitForHealth(ctx context.Context, url string) error {
	client := &http.Client{Timeout: 2 * time.Second}
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			return fmt.Errorf("health check failed with status")
		case <-ticker.C:
		}
	}
}

func runMigrations(root string) error {
	migrationsURL := "file://" + filepath.Join(root, "internal", "db", "migrations")
	migrator, err := migrate.New(migrationsURL, db.BuildURL(config.LoadConfig().Database))
	if err != nil {
		return err
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if err := migrator.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func startServer(ctx context.Context) (*server.Server, error) {
	srv, err := server.New(ctx, config.LoadConfig())
	if err != nil {
		return nil, err
	}

	go func() {
		_ = srv.Start()
	}()

	return srv, nil
}

func dockerCompose(ctx context.Context, root string, args ...string) error {
	composeFile := filepath.Join(root, "development", "docker-compose.yml")
	baseArgs := append([]string{"compose", "-f", composeFile}, args...)
	cmd := exec.CommandContext(ctx, "docker", baseArgs...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found")
		}
		dir = parent
	}
}
