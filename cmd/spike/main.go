// Command spike is a manual connectivity check: it builds an account
// from environment variables, lists the first page of the inbox, and
// prints the server's folder names. Useful for verifying provider
// endpoints and credentials against a live server.
package main

import (
	"context"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/corvomail/corvo/internal/attachments"
	"github.com/corvomail/corvo/internal/mailbox"
	"github.com/corvomail/corvo/internal/provider"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	email := os.Getenv("CORVO_SPIKE_EMAIL")
	password := os.Getenv("CORVO_SPIKE_PASSWORD")
	providerTag := os.Getenv("CORVO_SPIKE_PROVIDER")
	if email == "" || password == "" || providerTag == "" {
		logger.Fatal("CORVO_SPIKE_EMAIL, CORVO_SPIKE_PASSWORD, and CORVO_SPIKE_PROVIDER are required")
	}

	attachmentDir := os.Getenv("CORVO_ATTACHMENT_DIR")
	if attachmentDir == "" {
		attachmentDir = "data/attachments"
	}

	account, err := provider.NewAccount(email, password, provider.Provider(providerTag))
	if err != nil {
		logger.WithError(err).Fatal("Failed to build account")
	}

	service := mailbox.NewService(attachments.NewStore(attachmentDir, logger), logger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.WithField("account", account.Email).Info("Listing inbox")

	summaries, total, err := service.List(ctx, account, mailbox.FolderInbox, mailbox.ListOptions{Page: 1, PageSize: 10})
	if err != nil {
		logger.WithError(err).Fatal("Listing failed")
	}

	logger.WithField("total", total).Info("Inbox listed")
	for _, summary := range summaries {
		logger.WithFields(logrus.Fields{
			"uid":     summary.UID,
			"sent_at": summary.SentAt,
			"from":    summary.Sender,
		}).Info(summary.Subject)
	}

	folders, err := service.Folders(ctx, account)
	if err != nil {
		logger.WithError(err).Fatal("Folder listing failed")
	}
	logger.WithField("folders", folders).Info("Server folders")
}
