package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/term"
)

const appName = "twoot-bridge"

// runSetup — интерактивная первичная настройка профиля: регистрирует
// OAuth-приложение на инстансе Mastodon, получает токен по паролю
// (логин и пароль не сохраняются), спрашивает ключи Twitter, проверяет
// оба аккаунта и пишет config.yaml.
func runSetup(ctx context.Context, dir string, log *slog.Logger) error {
	in := bufio.NewReader(os.Stdin)
	httpClient := &http.Client{Timeout: defaultHTTPTimeoutSec * time.Second}

	fmt.Println("Welcome to twoot-bridge! Please answer a few questions.")

	fmt.Println("\n#1 Tell me about your Mastodon account.")
	instance := ask(in, "Instance (e.g., https://mastodon.social): ")
	instance = strings.TrimRight(instance, "/")
	if !strings.HasPrefix(instance, "http") {
		instance = "https://" + instance
	}
	email := ask(in, "Login e-mail (never stored): ")
	password := askSecret("Login password (never stored): ")

	ms := NewMastodonClient(MastodonConfig{Instance: instance}, httpClient, log)
	clientID, clientSecret, err := ms.RegisterApp(ctx, appName)
	if err != nil {
		return fmt.Errorf("mastodon app registration: %w", err)
	}
	token, err := ms.ObtainToken(ctx, clientID, clientSecret, email, password)
	if err != nil {
		return fmt.Errorf("mastodon login: %w", err)
	}
	ms.token = token
	msAcct, err := ms.VerifyCredentials(ctx)
	if err != nil {
		return fmt.Errorf("mastodon verification: %w", err)
	}
	fmt.Printf("Logged in to Mastodon as @%s\n", msAcct.Username)

	fmt.Println("\n#2 Tell me about your Twitter account.")
	fmt.Println("cf. Keys and tokens can be got from https://developer.twitter.com/")
	twCfg := TwitterConfig{
		ConsumerKey:       ask(in, "API key: "),
		ConsumerSecret:    ask(in, "API secret key: "),
		AccessToken:       ask(in, "Access token: "),
		AccessTokenSecret: ask(in, "Access token secret: "),
	}

	tw := NewTwitterClient(twCfg, defaultHTTPTimeoutSec*time.Second, log)
	twAcct, err := tw.VerifyCredentials(ctx)
	if err != nil {
		return fmt.Errorf("twitter verification: %w", err)
	}
	fmt.Printf("Logged in to Twitter as @%s\n", twAcct.Username)

	cfg := Config{
		Mastodon: MastodonConfig{
			Instance:     instance,
			ClientID:     clientID,
			ClientSecret: clientSecret,
			AccessToken:  token,
		},
		Twitter:        twCfg,
		MaxPairs:       defaultMaxPairs,
		HTTPTimeoutSec: defaultHTTPTimeoutSec,
	}
	if err := saveConfig(dir, cfg); err != nil {
		return err
	}

	fmt.Println("\nAll configuration done. Thanks!")
	return nil
}

func ask(in *bufio.Reader, prompt string) string {
	fmt.Print(prompt)
	line, _ := in.ReadString('\n')
	return strings.TrimSpace(line)
}

// askSecret читает пароль без эха; вне терминала — обычный ввод.
func askSecret(prompt string) string {
	fmt.Print(prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Println()
		if err == nil {
			return strings.TrimSpace(string(b))
		}
	}
	in := bufio.NewReader(os.Stdin)
	line, _ := in.ReadString('\n')
	return strings.TrimSpace(line)
}
