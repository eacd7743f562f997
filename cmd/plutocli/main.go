package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"plutochat/internal/client"
	"plutochat/internal/config"
	"plutochat/internal/wire"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to config file")
		username   = flag.String("user", "", "username to log in with")
		password   = flag.String("pass", "", "password to log in with")
		room       = flag.String("room", "", "room code to join or create")
		register   = flag.Bool("register", false, "register the account before logging in")
	)
	flag.Parse()

	if *username == "" || *password == "" || *room == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx := context.Background()
	baseURL := cfg.Client.APIBaseURL

	if *register {
		if err := registerUser(ctx, baseURL, *username, *password); err != nil {
			log.Fatalf("registration failed: %v", err)
		}
	}

	token, err := login(ctx, baseURL, *username, *password)
	if err != nil {
		log.Fatalf("login failed: %v", err)
	}

	api := client.NewClient(baseURL, token)
	if err := createOrJoin(ctx, baseURL, token, *room); err != nil {
		log.Fatalf("could not enter room %s: %v", *room, err)
	}

	opts := []client.SessionOption{
		client.WithReconnectDelay(cfg.Client.ReconnectDelay),
		client.WithDedupStrategy(client.WindowDedup{Window: cfg.Client.DedupWindow}),
		client.WithHandler(func(msg wire.Message) {
			printMessage(msg)
		}),
	}
	session := client.NewRoomSession(api, cfg.Client.BrokerURL, token, *username, *room, opts...)

	if err := session.Join(ctx); err != nil {
		log.Fatalf("failed to join room: %v", err)
	}
	defer session.Leave()

	fmt.Printf("Joined %s. Members: %s\n", *room, strings.Join(session.Members(), ", "))
	for _, msg := range session.Messages() {
		printMessage(msg)
	}
	fmt.Println("Type a message, /photo <path> to share an image, or /quit to leave.")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "/quit":
			return
		case strings.HasPrefix(line, "/photo "):
			path := strings.TrimSpace(strings.TrimPrefix(line, "/photo "))
			if err := sharePhoto(ctx, session, path); err != nil {
				fmt.Printf("! upload failed: %v\n", err)
			}
		case line == "":
			continue
		default:
			if err := session.Send(line); err != nil {
				fmt.Printf("! not sent: %v\n", err)
			}
		}
	}
}

func printMessage(msg wire.Message) {
	stamp := msg.Timestamp.Local().Format("15:04:05")
	if msg.Type == wire.ImageMessage && msg.MediaURL != "" {
		fmt.Printf("[%s] %s: %s (%s)\n", stamp, msg.Sender, msg.Content, msg.MediaURL)
		return
	}
	fmt.Printf("[%s] %s: %s\n", stamp, msg.Sender, msg.Content)
}

func sharePhoto(ctx context.Context, session *client.RoomSession, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return session.Upload(ctx, filepath.Base(path), mimeType, f)
}

func registerUser(ctx context.Context, baseURL, username, password string) error {
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	resp, err := postJSON(ctx, baseURL+"/auth/register", "", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusConflict {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

func login(ctx context.Context, baseURL, username, password string) (string, error) {
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	resp, err := postJSON(ctx, baseURL+"/auth/login", "", body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	var parsed struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	return parsed.Token, nil
}

func createOrJoin(ctx context.Context, baseURL, token, room string) error {
	body, _ := json.Marshal(map[string]string{"roomId": room})
	resp, err := postJSON(ctx, baseURL+"/api/v1/rooms", token, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

func postJSON(ctx context.Context, url, token string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	httpClient := &http.Client{Timeout: 15 * time.Second}
	return httpClient.Do(req)
}
