package commands

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"termfolio/pkg/domain"
)

var (
	ErrResponseMissing  = errors.New("command response not found")
	ErrNoDynamicHandler = errors.New("dynamic response handler not implemented")
	ErrDownloadUnmapped = errors.New("download command has no asset")
)

// Outcome is the result of resolving a command. The set of implementations
// is closed: StaticText, DynamicListing, FileDownloadTriggered, NotFound.
type Outcome interface {
	// Text is what a terminal prints for the outcome.
	Text() string
	outcome()
}

type StaticText struct {
	Command     string
	Content     string
	ContentType string
	Version     int
}

type DynamicListing struct {
	Command  string
	Content  string
	Commands []domain.Command
}

type FileDownloadTriggered struct {
	Command string
	Message string
	Info    DownloadInfo
}

type NotFound struct {
	Command string
}

func (o StaticText) Text() string            { return o.Content }
func (o DynamicListing) Text() string        { return o.Content }
func (o FileDownloadTriggered) Text() string { return o.Message }
func (o NotFound) Text() string {
	return fmt.Sprintf("Command not found: %s. Type '%s' to see all available commands.", o.Command, HelpCommand)
}

func (StaticText) outcome()            {}
func (DynamicListing) outcome()        {}
func (FileDownloadTriggered) outcome() {}
func (NotFound) outcome()              {}

// DownloadSpec binds a FILE_DOWNLOAD command to a served asset.
type DownloadSpec struct {
	FileType string
	FileName string
}

// DownloadInfo tells the caller where to fetch the file out of band.
type DownloadInfo struct {
	FileName    string `json:"fileName"`
	FileType    string `json:"fileType"`
	DownloadURL string `json:"downloadUrl"`
	SizeBytes   int64  `json:"sizeBytes,omitempty"`
	Pages       int    `json:"pages,omitempty"`
}

// DownloadURL is the API path that streams fileType.
func DownloadURL(fileType string) string {
	return "/api/commands/download/" + fileType
}

// Resolver maps command names to outcomes.
type Resolver struct {
	catalog   Catalog
	downloads map[string]DownloadSpec
}

// NewResolver builds a resolver over catalog. A nil downloads map uses SeedDownloads.
func NewResolver(catalog Catalog, downloads map[string]DownloadSpec) *Resolver {
	if downloads == nil {
		downloads = SeedDownloads
	}
	return &Resolver{catalog: catalog, downloads: downloads}
}

// Download returns the asset spec for a FILE_DOWNLOAD command.
func (r *Resolver) Download(name string) (DownloadSpec, bool) {
	spec, ok := r.downloads[name]
	return spec, ok
}

// Downloads returns the registered asset specs sorted by file name.
func (r *Resolver) Downloads() []DownloadSpec {
	out := make([]DownloadSpec, 0, len(r.downloads))
	for _, spec := range r.downloads {
		out = append(out, spec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FileName < out[j].FileName })
	return out
}

// DownloadByType returns the asset spec serving fileType.
func (r *Resolver) DownloadByType(fileType string) (DownloadSpec, bool) {
	for _, spec := range r.downloads {
		if spec.FileType == fileType {
			return spec, true
		}
	}
	return DownloadSpec{}, false
}

// Resolve looks up the normalized name and produces its outcome. Unknown or
// inactive names yield NotFound with a nil error.
func (r *Resolver) Resolve(ctx context.Context, name string) (Outcome, error) {
	name = Normalize(name)
	cmd, ok, err := r.catalog.GetActiveCommand(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("lookup command %s: %w", name, err)
	}
	if !ok {
		return NotFound{Command: name}, nil
	}

	switch cmd.ResponseKind {
	case domain.KindStatic:
		resp, ok, err := r.catalog.LatestResponse(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("lookup response %s: %w", name, err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrResponseMissing, name)
		}
		return StaticText{Command: name, Content: resp.Content, ContentType: resp.ContentType, Version: resp.Version}, nil
	case domain.KindDynamic:
		if name != HelpCommand {
			return nil, fmt.Errorf("%w: %s", ErrNoDynamicHandler, name)
		}
		cmds, err := r.catalog.ListActiveCommands(ctx)
		if err != nil {
			return nil, fmt.Errorf("list commands: %w", err)
		}
		return DynamicListing{Command: name, Content: RenderHelp(cmds), Commands: cmds}, nil
	case domain.KindFileDownload:
		spec, ok := r.downloads[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrDownloadUnmapped, name)
		}
		message := "Download initiated: " + spec.FileName
		resp, ok, err := r.catalog.LatestResponse(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("lookup response %s: %w", name, err)
		}
		if ok && strings.TrimSpace(resp.Content) != "" {
			message = resp.Content
		}
		return FileDownloadTriggered{
			Command: name,
			Message: message,
			Info: DownloadInfo{
				FileName:    spec.FileName,
				FileType:    spec.FileType,
				DownloadURL: DownloadURL(spec.FileType),
			},
		}, nil
	default:
		return nil, fmt.Errorf("unknown response kind %q for %s", cmd.ResponseKind, name)
	}
}
