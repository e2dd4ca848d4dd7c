package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"authrelay/internal/authflow"
	"authrelay/internal/config"
	"authrelay/internal/logging"
	"authrelay/internal/token"
	"authrelay/internal/tokenfile"
	"authrelay/internal/userinfo"
)

const tokenFileName = "tokens.json"

func main() {
	if err := logging.LoadLevel(); err != nil {
		logrus.WithError(err).Warn("failed to load log level")
	}

	conf, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	flow := authflow.New(conf)

	if refreshSavedTokens(ctx, conf, flow) {
		return
	}

	result, err := flow.Run(ctx)
	if err != nil {
		logrus.WithError(err).Fatal("authorization flow failed")
	}

	printTokens(result.Tokens)
	if result.Claims != nil {
		fmt.Printf("\nID token claims:\n")
		fmt.Printf("  Subject: %s\n", result.Claims.Subject)
		fmt.Printf("  Email: %s (verified: %t)\n", result.Claims.Email, result.Claims.EmailVerified)
	}
	if result.Profile != nil {
		printProfile(result.Profile)
	}

	if result.Tokens.RefreshToken != "" && confirm("Refresh the access token now? (y/n): ") {
		refreshed, err := flow.Client().Refresh(ctx, result.Tokens.RefreshToken)
		if err != nil {
			logrus.WithError(err).Fatal("token refresh failed")
		}
		printTokens(refreshed)

		profile, err := userinfo.Fetch(ctx, conf.Provider.UserinfoURL, refreshed.AccessToken)
		if err != nil {
			logrus.WithError(err).Warn("failed to verify the refreshed token against userinfo")
		} else {
			fmt.Printf("\nRefreshed token works, user: %s\n", profile.Email)
		}
	}

	if confirm(fmt.Sprintf("Save tokens to %s? (y/n): ", tokenFileName)) {
		if err := tokenfile.Save(tokenFileName, result.Tokens, result.Profile); err != nil {
			logrus.WithError(err).Fatal("failed to save tokens")
		}
		fmt.Printf("Saved to %s\n", tokenFileName)
	}
}

// refreshSavedTokens offers to reuse the refresh token from a previous run
// instead of a fresh browser login. Returns true when the saved-token path
// handled the session.
func refreshSavedTokens(ctx context.Context, conf *config.Config, flow *authflow.Flow) bool {
	doc, err := tokenfile.Load(tokenFileName)
	if err != nil || doc.Tokens == nil || doc.Tokens.RefreshToken == "" {
		return false
	}
	if !confirm(fmt.Sprintf("Found %s with a refresh token, refresh it instead of logging in again? (y/n): ", tokenFileName)) {
		return false
	}

	if conf.Exchange.Mode == config.ModeProxy {
		if err := flow.Client().CheckProxyHealth(ctx); err != nil {
			logrus.WithError(err).Fatal("cannot refresh through the proxy")
		}
	}

	refreshed, err := flow.Client().Refresh(ctx, doc.Tokens.RefreshToken)
	if err != nil {
		logrus.WithError(err).Fatal("token refresh failed")
	}
	printTokens(refreshed)

	profile, err := userinfo.Fetch(ctx, conf.Provider.UserinfoURL, refreshed.AccessToken)
	if err != nil {
		logrus.WithError(err).Warn("failed to verify the refreshed token against userinfo")
	} else {
		fmt.Printf("\nRefreshed token works, user: %s\n", profile.Email)
	}

	// A refresh response may rotate the refresh token; keep the previous
	// one when the provider omits it.
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = doc.Tokens.RefreshToken
	}
	if confirm(fmt.Sprintf("Save refreshed tokens to %s? (y/n): ", tokenFileName)) {
		if err := tokenfile.Save(tokenFileName, refreshed, doc.UserInfo); err != nil {
			logrus.WithError(err).Fatal("failed to save tokens")
		}
		fmt.Printf("Saved to %s\n", tokenFileName)
	}
	return true
}

func printTokens(set *token.Set) {
	fmt.Printf("\nTokens received:\n")
	fmt.Printf("  Access Token: %s\n", truncate(set.AccessToken))
	fmt.Printf("  Token Type: %s\n", set.TokenType)
	fmt.Printf("  Expires In: %d seconds\n", set.ExpiresIn)
	if set.RefreshToken != "" {
		fmt.Printf("  Refresh Token: %s\n", truncate(set.RefreshToken))
	}
	if set.IDToken != "" {
		fmt.Printf("  ID Token: %s\n", truncate(set.IDToken))
	}
}

func printProfile(p *userinfo.Profile) {
	fmt.Printf("\nUser information:\n")
	fmt.Printf("  Name: %s\n", p.Name)
	fmt.Printf("  Email: %s\n", p.Email)
	fmt.Printf("  Picture: %s\n", p.Picture)
	fmt.Printf("  ID: %s\n", p.ID)
	fmt.Printf("  Verified Email: %t\n", p.VerifiedEmail)
}

func truncate(s string) string {
	const max = 50
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

func confirm(prompt string) bool {
	fmt.Print(prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(line), "y")
}
