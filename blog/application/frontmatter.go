package application

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/dfryer1193/cms/blog/domain"
)

const (
	// DateLayout is the layout of the "date published" header field
	DateLayout = "02/01/2006 15:04"

	dateFormatDescription = "DD/MM/YYYY HH:MM"
	delimiter             = "------------------"
)

var (
	delimiterRegex = regexp.MustCompile(`^-{3,}$`)
	titleRegex     = regexp.MustCompile(`^title: +([A-Za-z0-9_-]+)$`)
	dateRegex      = regexp.MustCompile(`^date published: +(.+)$`)
	dateValueRegex = regexp.MustCompile(`^\d{2}/\d{2}/\d{4} \d{2}:\d{2}$`)

	// TitleRegex matches a valid post title on its own
	TitleRegex = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// headerState is a position in the four line header grammar
type headerState int

const (
	expectOpening headerState = iota
	expectTitle
	expectDate
	expectClosing
	readBody
)

var expectedShapes = map[headerState]string{
	expectOpening: "---",
	expectTitle:   "title: {any title}",
	expectDate:    "date published: {valid date time}",
	expectClosing: "---",
}

// ParsePost reads a source document and returns the post it describes.
// The header is consumed line by line in a fixed order; the first line that does not
// match aborts parsing. Everything after the closing delimiter is kept verbatim.
func ParsePost(r io.Reader) (*domain.Post, error) {
	reader := bufio.NewReader(r)
	post := &domain.Post{}

	for state := expectOpening; state != readBody; state++ {
		line, err := readLine(reader)
		if err != nil {
			return nil, err
		}

		switch state {
		case expectOpening, expectClosing:
			if !delimiterRegex.MatchString(line) {
				return nil, unexpectedLine(state, line)
			}
		case expectTitle:
			matches := titleRegex.FindStringSubmatch(line)
			if matches == nil {
				return nil, unexpectedLine(state, line)
			}
			post.Title = matches[1]
		case expectDate:
			matches := dateRegex.FindStringSubmatch(line)
			if matches == nil {
				return nil, unexpectedLine(state, line)
			}
			published, err := parseDate(matches[1])
			if err != nil {
				return nil, err
			}
			post.Published = published
		}
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, &domain.IOError{Op: "reading", Path: "content", Err: err}
	}
	post.Content = string(body)

	return post, nil
}

// FormatPost serializes a post into the source document format understood by ParsePost
func FormatPost(p *domain.Post) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("post cannot be nil")
	}

	if !TitleRegex.MatchString(p.Title) {
		return nil, fmt.Errorf("invalid post title %q: only letters, digits, '_' and '-' are allowed", p.Title)
	}

	var b strings.Builder
	b.WriteString(delimiter + "\n")
	b.WriteString("title: " + p.Title + "\n")
	b.WriteString("date published: " + p.Published.UTC().Format(DateLayout) + "\n")
	b.WriteString(delimiter + "\n")
	b.WriteString(p.Content)

	return []byte(b.String()), nil
}

// readLine returns the next line without its trailing newline.
// A final line without a newline is still a line; nothing left at all is ErrUnexpectedEOF.
func readLine(reader *bufio.Reader) (string, error) {
	line, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", &domain.IOError{Op: "reading", Path: "header line", Err: err}
	}

	if errors.Is(err, io.EOF) && line == "" {
		return "", domain.ErrUnexpectedEOF
	}

	return strings.TrimSuffix(line, "\n"), nil
}

func parseDate(value string) (time.Time, error) {
	if !dateValueRegex.MatchString(value) {
		return time.Time{}, &domain.DateError{Layout: dateFormatDescription, Value: value}
	}

	published, err := time.ParseInLocation(DateLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, &domain.DateError{Layout: dateFormatDescription, Value: value, Err: err}
	}

	return published, nil
}

func unexpectedLine(state headerState, found string) error {
	return &domain.FormatError{Expected: expectedShapes[state], Found: found}
}
