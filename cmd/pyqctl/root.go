package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"pyqportal/internal/client"
	"pyqportal/internal/config"
	"pyqportal/internal/portal"
)

var rootCMD = &cobra.Command{
	Use:          "pyqctl",
	Short:        "Upload, browse and ask about previous year question papers",
	SilenceUsage: true,
}

func init() {
	defaults := clientDefaults()
	rootCMD.PersistentFlags().String("upload-url", defaults.UploadBaseURL, "upload service base URL (env PYQ_API_URL)")
	rootCMD.PersistentFlags().String("chat-url", defaults.ChatBaseURL, "chat service base URL (env PYQ_CHAT_API_URL)")
	rootCMD.PersistentFlags().String("token", os.Getenv("PYQ_TOKEN"), "bearer token for the upload service (env PYQ_TOKEN)")
	rootCMD.PersistentFlags().Duration("timeout", 2*time.Minute, "per request timeout")
}

// clientDefaults reads the base URLs from the shared config file and
// environment, falling back to the loopback defaults.
func clientDefaults() config.ClientConfig {
	cfg, err := config.Load(os.Getenv("PYQ_CONFIG"))
	if err != nil {
		return config.ClientConfig{
			UploadBaseURL: envOr("PYQ_API_URL", config.DefaultUploadBaseURL),
			ChatBaseURL:   envOr("PYQ_CHAT_API_URL", config.DefaultChatBaseURL),
		}
	}
	return cfg.Client
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newClient(cmd *cobra.Command) (*client.Client, error) {
	flags := cmd.Flags()
	uploadURL, err := flags.GetString("upload-url")
	if err != nil {
		return nil, err
	}
	chatURL, err := flags.GetString("chat-url")
	if err != nil {
		return nil, err
	}
	token, err := flags.GetString("token")
	if err != nil {
		return nil, err
	}
	timeout, err := flags.GetDuration("timeout")
	if err != nil {
		return nil, err
	}
	return client.New(client.Options{
		UploadBaseURL: uploadURL,
		ChatBaseURL:   chatURL,
		HTTPClient:    &http.Client{Timeout: timeout},
		Tokens:        client.NewTokenStore(token),
	}), nil
}

// newNotifier prints every notification to w as it is raised.
func newNotifier(w io.Writer) *portal.Notifier {
	notes := portal.NewNotifier(portal.DefaultNotificationDuration)
	notes.Listen(func(n portal.Notification) {
		fmt.Fprintf(w, "[%s] %s\n", n.Kind, n.Message)
	})
	return notes
}
