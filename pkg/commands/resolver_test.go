package commands

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"termfolio/pkg/domain"
)

func TestResolveEveryActiveCommand(t *testing.T) {
	ctx := context.Background()
	catalog := DefaultCatalog()
	r := NewResolver(catalog, nil)

	cmds, err := catalog.ListActiveCommands(ctx)
	require.NoError(t, err)
	require.Len(t, cmds, len(SeedCommands))

	for _, cmd := range cmds {
		out, err := r.Resolve(ctx, cmd.Name)
		require.NoError(t, err, cmd.Name)
		_, notFound := out.(NotFound)
		assert.False(t, notFound, "%s resolved to NotFound", cmd.Name)
	}
}

func TestResolveUnknownIsNotFound(t *testing.T) {
	ctx := context.Background()
	r := NewResolver(DefaultCatalog(), nil)

	for _, name := range []string{"/unknowncmd", "unknowncmd", "/ABOUT", "/about ", "/", ""} {
		out, err := r.Resolve(ctx, name)
		require.NoError(t, err)
		if strings.TrimSpace(name) == "/about" {
			continue
		}
		nf, ok := out.(NotFound)
		require.True(t, ok, "%q should be NotFound, got %T", name, out)
		assert.Contains(t, nf.Text(), "Type '/help'")
	}
}

func TestResolveUnknownMessage(t *testing.T) {
	out, err := NewResolver(DefaultCatalog(), nil).Resolve(context.Background(), "/unknowncmd")
	require.NoError(t, err)
	assert.Equal(t, "Command not found: /unknowncmd. Type '/help' to see all available commands.", out.Text())
}

func TestNormalizeIdempotent(t *testing.T) {
	ctx := context.Background()
	r := NewResolver(DefaultCatalog(), nil)
	for _, name := range []string{"about", "/about", "  skill", "nope", "/"} {
		once := Normalize(name)
		twice := Normalize(once)
		assert.Equal(t, once, twice)

		a, err := r.Resolve(ctx, once)
		require.NoError(t, err)
		b, err := r.Resolve(ctx, twice)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	}
}

func TestResolveContactIsStableStaticText(t *testing.T) {
	ctx := context.Background()
	r := NewResolver(DefaultCatalog(), nil)

	first, err := r.Resolve(ctx, "/contact")
	require.NoError(t, err)
	static, ok := first.(StaticText)
	require.True(t, ok)
	assert.Contains(t, static.Content, "WhatsApp: https://wa.me/60166206903")

	second, err := r.Resolve(ctx, "/contact")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestResolvePicksHighestActiveVersion(t *testing.T) {
	ctx := context.Background()
	catalog := DefaultCatalog()
	catalog.UpsertResponse(domain.CommandResponse{CommandName: "/about", Version: 2, Content: "v2", Active: true})
	catalog.UpsertResponse(domain.CommandResponse{CommandName: "/about", Version: 3, Content: "v3", Active: false})

	out, err := NewResolver(catalog, nil).Resolve(ctx, "about")
	require.NoError(t, err)
	assert.Equal(t, StaticText{Command: "/about", Content: "v2", Version: 2}, out)
}

func TestResolveStaticWithoutResponseErrors(t *testing.T) {
	catalog := NewStaticCatalog([]domain.Command{
		{Name: "/empty", ResponseKind: domain.KindStatic, Active: true},
	}, nil)
	_, err := NewResolver(catalog, nil).Resolve(context.Background(), "/empty")
	require.ErrorIs(t, err, ErrResponseMissing)
}

func TestResolveDownload(t *testing.T) {
	out, err := NewResolver(DefaultCatalog(), nil).Resolve(context.Background(), "/download-resume-pdf")
	require.NoError(t, err)
	dl, ok := out.(FileDownloadTriggered)
	require.True(t, ok)
	assert.Equal(t, DownloadInfo{
		FileName:    "wzhenkai_resume.pdf",
		FileType:    "pdf",
		DownloadURL: "/api/commands/download/pdf",
	}, dl.Info)
	assert.Contains(t, dl.Message, "Download initiated!")
}

func TestHelpListsActiveCommandsSorted(t *testing.T) {
	ctx := context.Background()
	catalog := DefaultCatalog()
	catalog.UpsertCommand(domain.Command{Name: "/retired", Description: "gone", ResponseKind: domain.KindStatic, Active: false})

	out, err := NewResolver(catalog, nil).Resolve(ctx, "/help")
	require.NoError(t, err)
	listing, ok := out.(DynamicListing)
	require.True(t, ok)
	assert.NotContains(t, listing.Content, "/retired")

	rendered := RenderListing(listing.Commands)
	lines := strings.Split(rendered, "\n")
	require.Len(t, lines, len(SeedCommands))
	for i := 1; i < len(lines); i++ {
		assert.Less(t, lines[i-1], lines[i])
	}
	assert.Equal(t, "/about                    - a summary of me in less than 100 words", lines[0])
	assert.True(t, strings.HasPrefix(listing.Content, "🔧 AVAILABLE COMMANDS\n\n"+lines[0]))
}
