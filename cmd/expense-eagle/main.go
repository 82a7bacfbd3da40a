package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/deidaraiorek/expense-eagle-reporter/internal/receipt"
	"github.com/deidaraiorek/expense-eagle-reporter/internal/scanning"
	"github.com/deidaraiorek/expense-eagle-reporter/internal/server"
	"github.com/deidaraiorek/expense-eagle-reporter/internal/session"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

// memoryDBPath selects the in-process database
const memoryDBPath = ":memory:"

func main() {
	os.Exit(run(os.Args[1:]))
}

// run starts the server and returns the process exit code. Deferred cleanup
// runs before main exits.
func run(args []string) int {
	for _, arg := range args {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			return 0
		}
	}

	fs := ff.NewFlagSet("expense-eagle")
	var (
		port          = fs.IntLong("port", 8080, "HTTP server port")
		dbPath        = fs.StringLong("db", "expense-eagle.db", "Database file path, or :memory: for a throwaway in-process store")
		storagePath   = fs.StringLong("storage", "./receipts", "Receipt image directory")
		seed          = fs.BoolLong("seed", "Load demo users, department and receipts into an empty database")
		scannerType   = fs.StringLong("scanner", "none", "Scanner type: 'gemini', 'ollama' or 'none'")
		geminiKey     = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel   = fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name")
		ollamaURL     = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel   = fs.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, llava-phi3, qwen2-vl)")
		sessionSecret = fs.StringLong("session-secret", "", "Secret used to sign session tokens")
		sessionTTL    = fs.DurationLong("session-ttl", 12*time.Hour, "Session token lifetime")
		corsOrigins   = fs.StringLong("cors-origins", "", "Comma-separated allowed CORS origins (default any)")
		showVersion   = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, args,
		ff.WithEnvVarPrefix("EXPENSE_EAGLE"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	if *showVersion {
		fmt.Println(version)
		return 0
	}

	if *sessionSecret == "" {
		slog.Error("Session secret is required. Set --session-secret flag or EXPENSE_EAGLE_SESSION_SECRET environment variable")
		return 1
	}

	slog.Info("Initializing database...", "path", *dbPath)
	var db receipt.DB
	if *dbPath == memoryDBPath {
		db = receipt.NewMemoryDB()
	} else {
		boltDB, err := receipt.NewBoltDB(*dbPath)
		if err != nil {
			slog.Error("Failed to initialize database", "error", err)
			return 1
		}
		db = boltDB
	}
	defer db.Close()

	if *seed {
		if _, err := receipt.Seed(db, time.Now()); err != nil {
			slog.Error("Failed to seed database", "error", err)
			return 1
		}
	}

	scanner, err := newScanner(*scannerType, *geminiKey, *geminiModel, *ollamaURL, *ollamaModel)
	if err != nil {
		slog.Error("Failed to initialize scanner", "type", *scannerType, "error", err)
		return 1
	}
	defer scanner.Close()

	slog.Info("Initializing storage...", "path", *storagePath)
	storage, err := receipt.NewLocalStorage(*storagePath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		return 1
	}

	sessions, err := session.NewManager(*sessionSecret, *sessionTTL)
	if err != nil {
		slog.Error("Failed to initialize sessions", "error", err)
		return 1
	}

	directory := receipt.NewDirectory(db)
	service := receipt.NewService(receipt.NewStore(db), directory, scanner, storage)
	srv := server.NewServer(service, directory, sessions, server.Config{AllowedOrigins: splitList(*corsOrigins)})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := fmt.Sprintf(":%d", *port)
	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "version", version, "scanner", *scannerType)
	if err := srv.Start(ctx, addr); err != nil {
		slog.Error("Server error", "error", err)
		return 1
	}
	slog.Info("Server stopped")
	return 0
}

func newScanner(kind, geminiKey, geminiModel, ollamaURL, ollamaModel string) (scanning.Scanner, error) {
	switch kind {
	case "gemini":
		if geminiKey == "" {
			geminiKey = os.Getenv("GEMINI_API_KEY")
		}
		if geminiKey == "" {
			return nil, fmt.Errorf("gemini API key is required: set --gemini-key or GEMINI_API_KEY")
		}
		slog.Info("Initializing Gemini scanner...", "model", geminiModel)
		return scanning.NewGemini(geminiKey, geminiModel)
	case "ollama":
		slog.Info("Initializing Ollama scanner...", "url", ollamaURL, "model", ollamaModel)
		return scanning.NewOllama(ollamaURL, ollamaModel)
	case "none", "":
		slog.Info("Receipt scanning disabled")
		return scanning.Disabled{}, nil
	}
	return nil, fmt.Errorf("invalid scanner type %q: want gemini, ollama or none", kind)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
