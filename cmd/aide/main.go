// Package main is the aide CLI entry point.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/aide/internal/agent"
	"github.com/hyperjump/aide/internal/config"
	"github.com/hyperjump/aide/internal/index"
	"github.com/hyperjump/aide/internal/infer"
	"github.com/hyperjump/aide/internal/models"
	"github.com/hyperjump/aide/internal/server"
	"github.com/hyperjump/aide/internal/storage"
	"github.com/hyperjump/aide/internal/train"
	"github.com/hyperjump/aide/internal/web"
	"github.com/hyperjump/aide/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/aide/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used instead.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "infer":
		runInfer()
	case "train":
		runTrain()
	case "chat":
		runChat()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("aide version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func setup(configPath string, debugFlag bool) (*config.Config, *zap.Logger) {
	cfg, resolvedPath, err := loadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || debugFlag
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.Info("config loaded",
		zap.String("config_path", resolvedPath),
		zap.Bool("debug", debugMode),
	)
	return cfg, logger
}

func openStorage(cfg *config.Config, logger *zap.Logger) *storage.SQLiteStorage {
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.DatabasePath), 0o755); err != nil {
		logger.Fatal("Failed to create data directory", zap.Error(err))
	}
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Fatal("Failed to open storage", zap.Error(err))
	}
	return store
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, logger := setup(*configPath, *debug)
	defer logger.Sync()

	store := openStorage(cfg, logger)
	defer store.Close()

	idx := index.NewIndex(store, logger)
	webClient := web.NewClient(store, cfg.Web.SearxURL,
		time.Duration(cfg.Web.TimeoutSeconds)*time.Second, cfg.Web.QueryTTLHours, logger)
	inferClient := infer.NewClient(cfg.Infer.URL, time.Duration(cfg.Infer.TimeoutSeconds)*time.Second)
	a := agent.NewAgent(store, idx, webClient, webClient, inferClient, logger)

	srv := server.NewServer(a, store, &cfg.Server, &cfg.Model, logger)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runInfer() {
	fs := flag.NewFlagSet("infer", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, logger := setup(*configPath, *debug)
	defer logger.Sync()

	if err := os.MkdirAll(cfg.Model.Dir, 0o755); err != nil {
		logger.Fatal("Failed to create model directory", zap.Error(err))
	}
	svc := infer.NewService(&cfg.Model, logger, nil)

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if err := svc.Watch(watchCtx); err != nil {
		logger.Warn("Model watcher unavailable, reload on restart only", zap.Error(err))
	}

	srv := infer.NewServer(svc, &cfg.Infer, logger)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Inference server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runTrain() {
	fs := flag.NewFlagSet("train", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, logger := setup(*configPath, *debug)
	defer logger.Sync()

	store := openStorage(cfg, logger)
	defer store.Close()

	if err := os.MkdirAll(cfg.Model.Dir, 0o755); err != nil {
		logger.Fatal("Failed to create model directory", zap.Error(err))
	}

	trainer := train.NewTrainer(store, &cfg.Model, logger, nil)
	loss, err := trainer.Run(context.Background())
	if err != nil {
		logger.Fatal("Training failed", zap.Error(err))
	}
	logger.Info("Training complete", zap.Float64("final_avg_loss", loss))
	fmt.Printf("Training complete, final average loss %.4f\n", loss)
}

func runChat() {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "chat server URL")
	conversationID := fs.String("conversation", "", "resume an existing conversation id")
	_ = fs.Parse(os.Args[2:])

	client := &http.Client{Timeout: 30 * time.Second}
	convID := *conversationID

	fmt.Println("aide chat. Type a message, or /quit to exit.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			break
		}

		resp, err := postChat(client, *serverURL, convID, line)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}
		convID = resp.ConversationID
		fmt.Println(resp.Reply)
		for i, c := range resp.Citations {
			fmt.Printf("  [%d] %s — %s\n", i+1, c.Title, c.URL)
		}
	}
	if convID != "" {
		fmt.Printf("Conversation id: %s\n", convID)
	}
}

func postChat(client *http.Client, serverURL, conversationID, message string) (*models.ChatResponse, error) {
	payload, err := json.Marshal(&models.ChatRequest{ConversationID: conversationID, Message: message})
	if err != nil {
		return nil, err
	}
	resp, err := client.Post(strings.TrimRight(serverURL, "/")+"/api/v1/chat",
		"application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("server: %s", apiErr.Error)
		}
		return nil, fmt.Errorf("server returned status %d", resp.StatusCode)
	}
	var out models.ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "chat server URL")
	_ = fs.Parse(os.Args[2:])

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(strings.TrimRight(*serverURL, "/") + "/api/v1/status")
	if err != nil {
		fmt.Printf("Failed to reach server: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	var status map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		fmt.Printf("Failed to decode status: %v\n", err)
		os.Exit(1)
	}
	for _, key := range []string{"conversations", "messages", "documents", "model_trained"} {
		if v, ok := status[key]; ok {
			fmt.Printf("%-14s %v\n", key+":", v)
		}
	}
}

func printUsage() {
	fmt.Println(`aide - Personal assistant with local retrieval and a self-trained model

Usage:
  aide server [flags]    Start the chat API server
  aide infer [flags]     Start the inference server
  aide train [flags]     Train the model on stored conversations
  aide chat [flags]      Chat from the terminal
  aide status [flags]    Show storage counters
  aide version           Show version
  aide help              Show this help

Server/Infer/Train Flags:
  --config string    Config file path (default: /usr/local/etc/aide/config.yaml)
  --debug            Enable debug logging

Chat/Status Flags:
  --server string        Server URL (default: http://localhost:8080)
  --conversation string  Resume an existing conversation id (chat only)`)
}
