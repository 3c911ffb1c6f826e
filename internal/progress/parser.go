package progress

import (
	"strconv"
	"strings"
)

// Markers delimiting the machine-readable line produced by Template
const (
	MarkerStart = "|PROGRESS|"
	MarkerEnd   = "|PROGRESS_END|"
)

// Template is passed to yt-dlp via --progress-template so each progress tick
// prints as one pipe-separated record:
// status|percent|speed|eta|downloaded|total|fragment index|fragment count
const Template = "download:" + MarkerStart +
	"%(progress.status)s|%(progress._percent_str)s|%(progress._speed_str)s|%(progress._eta_str)s|" +
	"%(progress.downloaded_bytes)s|%(progress.total_bytes)s|" +
	"%(progress.fragment_index)s|%(progress.fragment_count)s" + MarkerEnd

type Kind int

const (
	KindNone Kind = iota
	KindProgress
	KindFragment
	KindPostProcess
	KindDestination
	KindAlreadyDownloaded
	KindError
	KindInfo
)

func (k Kind) String() string {
	switch k {
	case KindProgress:
		return "progress"
	case KindFragment:
		return "fragment"
	case KindPostProcess:
		return "postprocess"
	case KindDestination:
		return "destination"
	case KindAlreadyDownloaded:
		return "already_downloaded"
	case KindError:
		return "error"
	case KindInfo:
		return "info"
	default:
		return "none"
	}
}

const (
	StatusDownloading = "downloading"
	StatusFinished    = "finished"
)

// Event is the structured form of one line of yt-dlp output.
// Numeric fields are zero when yt-dlp did not report them.
type Event struct {
	Kind   Kind
	Status string

	Percent float64
	Speed   string
	ETA     string

	DownloadedBytes int64
	TotalBytes      int64

	FragmentIndex int
	FragmentCount int

	// Message carries the raw line for non-progress kinds
	Message   string
	ErrorKind ErrorKind
}

// Final reports whether the event closes out the download phase of a job.
// Final events are never throttled.
func (e Event) Final() bool {
	switch e.Kind {
	case KindProgress, KindFragment:
		return e.Status == StatusFinished || e.Percent >= 100
	case KindError, KindPostProcess:
		return true
	}
	return false
}

var postProcessPrefixes = []string{
	"[Merger]",
	"[ffmpeg]",
	"[VideoConvertor]",
	"[VideoRemuxer]",
	"[FixupM3u8]",
	"[EmbedSubtitle]",
	"[EmbedThumbnail]",
	"[Metadata]",
}

// Extractor chatter that is neither progress nor worth logging
var noisePrefixes = []string{
	"[youtube]",
	"[info]",
	"[debug]",
	"[generic]",
	"[ExtractAudio]",
}

// Parse maps one output line to at most one event. It keeps no state.
func Parse(line string) Event {
	line = strings.TrimSpace(line)
	if line == "" {
		return Event{}
	}

	if strings.Contains(line, MarkerStart) && strings.Contains(line, MarkerEnd) {
		if ev, ok := parseTemplate(line); ok {
			return ev
		}
	}

	if strings.HasPrefix(line, "[download]") {
		return parseDownloadLine(line)
	}

	if hasAnyPrefix(line, postProcessPrefixes) {
		return Event{Kind: KindPostProcess, Message: line}
	}

	if strings.Contains(line, "Destination:") {
		return Event{Kind: KindDestination, Message: line}
	}

	if strings.Contains(line, "has already been recorded in the archive") ||
		strings.Contains(line, "has already been downloaded") {
		return Event{Kind: KindAlreadyDownloaded, Message: line}
	}

	if strings.Contains(line, "ERROR") {
		return Event{Kind: KindError, Message: line, ErrorKind: Classify(line)}
	}

	if hasAnyPrefix(line, noisePrefixes) {
		return Event{}
	}

	return Event{Kind: KindInfo, Message: line}
}

func parseTemplate(line string) (Event, bool) {
	start := strings.Index(line, MarkerStart) + len(MarkerStart)
	end := strings.Index(line, MarkerEnd)
	if end <= start {
		return Event{}, false
	}

	parts := strings.Split(line[start:end], "|")
	if len(parts) < 8 {
		return Event{}, false
	}

	ev := Event{
		Kind:            KindProgress,
		Status:          strings.TrimSpace(parts[0]),
		Percent:         parsePercent(parts[1]),
		Speed:           optional(parts[2]),
		ETA:             optional(parts[3]),
		DownloadedBytes: optionalInt(parts[4]),
		TotalBytes:      optionalInt(parts[5]),
		FragmentIndex:   int(optionalInt(parts[6])),
		FragmentCount:   int(optionalInt(parts[7])),
	}
	return ev, true
}

func parseDownloadLine(line string) Event {
	if strings.Contains(line, "100%") && strings.Contains(line, " of ") {
		return Event{Kind: KindProgress, Status: StatusFinished, Percent: 100}
	}

	if ev, ok := parseClassicProgress(line); ok {
		return ev
	}

	if strings.Contains(line, "Destination:") {
		return Event{Kind: KindDestination, Message: line}
	}

	if strings.Contains(line, "Downloading item") || strings.Contains(line, "fragment") {
		if ev, ok := parseFragment(line); ok {
			return ev
		}
	}

	return Event{Kind: KindInfo, Message: line}
}

// parseClassicProgress handles "[download]  45.2% of 100.00MiB at 1.50MiB/s ETA 00:35"
func parseClassicProgress(line string) (Event, bool) {
	pctEnd := strings.IndexByte(line, '%')
	if pctEnd < 0 {
		return Event{}, false
	}
	pctStart := strings.LastIndexFunc(line[:pctEnd], func(r rune) bool {
		return (r < '0' || r > '9') && r != '.'
	}) + 1

	pct, err := strconv.ParseFloat(line[pctStart:pctEnd], 64)
	if err != nil {
		return Event{}, false
	}

	ev := Event{Kind: KindProgress, Status: StatusDownloading, Percent: pct}
	if pct >= 100 {
		ev.Status = StatusFinished
	}

	if i := strings.Index(line, " at "); i >= 0 {
		ev.Speed = firstField(line[i+4:])
	}

	if i := strings.Index(line, "ETA "); i >= 0 {
		ev.ETA = optional(line[i+4:])
	}

	if i := strings.Index(line, " of "); i >= 0 {
		ev.TotalBytes = ParseSize(strings.TrimPrefix(firstField(line[i+4:]), "~"))
	}

	return ev, true
}

// parseFragment handles "Downloading item 5 of 10" and "Downloaded fragment 3 of 12"
func parseFragment(line string) (Event, bool) {
	i := strings.Index(line, " of ")
	if i < 0 {
		return Event{}, false
	}

	before := line[:i]
	digitsStart := strings.LastIndexFunc(before, func(r rune) bool { return r < '0' || r > '9' }) + 1
	current, err := strconv.Atoi(before[digitsStart:])
	if err != nil {
		return Event{}, false
	}

	after := line[i+4:]
	digitsEnd := strings.IndexFunc(after, func(r rune) bool { return r < '0' || r > '9' })
	if digitsEnd < 0 {
		digitsEnd = len(after)
	}
	total, err := strconv.Atoi(after[:digitsEnd])
	if err != nil {
		return Event{}, false
	}

	ev := Event{
		Kind:          KindFragment,
		Status:        StatusDownloading,
		FragmentIndex: current,
		FragmentCount: total,
	}
	if total > 0 {
		ev.Percent = float64(current) / float64(total) * 100
	}
	return ev, true
}

var sizeUnits = map[string]float64{
	"":    1,
	"b":   1,
	"k":   1 << 10,
	"kb":  1 << 10,
	"kib": 1 << 10,
	"m":   1 << 20,
	"mb":  1 << 20,
	"mib": 1 << 20,
	"g":   1 << 30,
	"gb":  1 << 30,
	"gib": 1 << 30,
	"t":   1 << 40,
	"tb":  1 << 40,
	"tib": 1 << 40,
}

// ParseSize converts yt-dlp sizes such as "100.50MiB" to bytes. Unknown input yields 0.
func ParseSize(s string) int64 {
	s = strings.TrimSpace(s)
	numEnd := strings.IndexFunc(s, func(r rune) bool { return (r < '0' || r > '9') && r != '.' })
	if numEnd < 0 {
		numEnd = len(s)
	}

	num, err := strconv.ParseFloat(s[:numEnd], 64)
	if err != nil {
		return 0
	}

	mult, ok := sizeUnits[strings.ToLower(s[numEnd:])]
	if !ok {
		return 0
	}
	return int64(num * mult)
}

func parsePercent(s string) float64 {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// optional filters yt-dlp's placeholders for missing values
func optional(s string) string {
	s = strings.TrimSpace(s)
	switch s {
	case "", "NA", "N/A", "Unknown", "None":
		return ""
	}
	return s
}

func optionalInt(s string) int64 {
	v, err := strconv.ParseInt(optional(s), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func firstField(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, ' '); i >= 0 {
		return s[:i]
	}
	return s
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
