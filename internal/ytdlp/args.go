package ytdlp

import (
	"github.com/datallboy/autodl/internal/infra/config"
	"github.com/datallboy/autodl/internal/progress"
)

// BuildArgs returns the yt-dlp argument list for one URL. It is a pure
// function of the download settings. CustomArgs are expected to have passed
// config validation; malformed quoting there is dropped rather than guessed at.
func BuildArgs(d config.DownloadConfig, url string) []string {
	args := make([]string, 0, 24)

	if d.ArchiveFile != "" {
		args = append(args, "--download-archive", d.ArchiveFile)
	}

	format, ok := config.FormatPresets[d.FormatPreset]
	if !ok {
		format = config.FormatPresets["best"]
	}
	args = append(args, "--format", format)
	args = append(args, "--output", d.OutputPath())

	args = append(args, config.OutputFormats[d.OutputFormat]...)

	if d.WriteSubtitles {
		args = append(args, "--write-auto-subs", "--sub-langs", "all")
	}

	if d.WriteThumbnail {
		args = append(args, "--write-thumbnail")
	}

	if d.AddMetadata {
		args = append(args, "--add-metadata")
	}

	if d.RateLimit != "" {
		args = append(args, "--limit-rate", d.RateLimit)
	}

	if d.CookiesFromBrowser != "" {
		args = append(args, "--cookies-from-browser", d.CookiesFromBrowser)
	}

	// One progress record per line for the parser
	args = append(args, "--newline", "--progress-template", progress.Template)

	if custom, err := d.ParsedCustomArgs(); err == nil {
		args = append(args, custom...)
	}

	// "--" keeps a URL starting with '-' from being read as a flag
	return append(args, "--", url)
}
