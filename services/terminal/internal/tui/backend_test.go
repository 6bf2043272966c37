package tui

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"termfolio/pkg/commands"
	"termfolio/services/terminal/internal/client"
)

func TestOfflineResolvesBuiltInCatalog(t *testing.T) {
	b := NewOffline()
	ctx := context.Background()

	cmds, err := b.Commands(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, cmds)

	reply, err := b.Execute(ctx, "help", "")
	require.NoError(t, err)
	require.Contains(t, reply.Text, "AVAILABLE COMMANDS")

	reply, err = b.Execute(ctx, "/nope", "")
	require.NoError(t, err)
	require.Contains(t, reply.Text, "Command not found: /nope")

	reply, err = b.Execute(ctx, "/clear", "")
	require.NoError(t, err)
	require.True(t, reply.Clear())

	reply, err = b.Execute(ctx, "/download-resume-pdf", "")
	require.NoError(t, err)
	require.NotNil(t, reply.Download)
	require.Equal(t, "pdf", reply.Download.FileType)

	_, err = b.Download(ctx, *reply.Download)
	require.ErrorIs(t, err, ErrOffline)
}

func TestRemoteExecuteAndDownload(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/commands/execute", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		if body["command"] == "/nope" {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"status": "fail", "message": "Command '/nope' not found", "code": "NOT_FOUND",
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "success",
			"data": map[string]any{
				"command":  body["command"],
				"response": "Download initiated",
				"downloadInfo": map[string]any{
					"fileName": "wzhenkai_resume.md", "fileType": "md", "downloadUrl": commands.DownloadURL("md"),
				},
				"user": map[string]any{"nickname": body["nickname"], "totalCommands": 1},
			},
		})
	})
	mux.HandleFunc("/api/commands/download/md", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "sess-9", r.URL.Query().Get("sessionId"))
		w.Header().Set("Content-Disposition", `attachment; filename="wzhenkai_resume.md"`)
		_, _ = w.Write([]byte("# Resume\n"))
	})
	mux.HandleFunc("/api/users/sess-9/profile", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "fail", "message": "User not found"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	dir := t.TempDir()
	b := NewRemote(client.NewClient(srv.URL), "sess-9", "UTC", dir)
	ctx := context.Background()

	reply, err := b.Execute(ctx, "/nope", "Ada")
	require.NoError(t, err)
	require.Equal(t, "Command '/nope' not found", reply.Text)

	reply, err = b.Execute(ctx, "/download-resume-md", "Ada")
	require.NoError(t, err)
	require.Equal(t, "Ada", reply.Nickname)
	require.NotNil(t, reply.Download)

	path, err := b.Download(ctx, *reply.Download)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "wzhenkai_resume.md"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "# Resume\n", string(data))

	require.NoError(t, b.SetNickname(ctx, "Ada"), "unknown visitors are created by the next execute")
}
