// Package parser extracts card drafts from markdown study files. A card is a
// "Q:" block followed by an "A:" block and an optional "C:" context block;
// "---" separates cards.
package parser

import (
	"bufio"
	"io"
	"os"
	"strings"
)

// Card is one parsed card draft, before fingerprinting and persistence.
type Card struct {
	Front   string
	Back    string
	Context string
}

const (
	frontPrefix   = "Q:"
	backPrefix    = "A:"
	contextPrefix = "C:"
	separator     = "---"
)

type section int

const (
	seeking section = iota
	inFront
	inBack
	inContext
)

// ParseFile reads the file at path and extracts all card drafts.
func ParseFile(path string) ([]Card, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads from r and extracts all card drafts. Cards without a front are
// dropped; a new "Q:" block implicitly finishes the card in progress.
func Parse(r io.Reader) ([]Card, error) {
	var (
		cards   []Card
		current Card
		block   []string
		state   = seeking
	)

	flushBlock := func() {
		if len(block) == 0 {
			return
		}
		content := strings.Join(block, "\n")
		switch state {
		case inFront:
			current.Front = content
		case inBack:
			current.Back = content
		case inContext:
			current.Context = content
		}
		block = nil
	}

	finishCard := func() {
		flushBlock()
		if current.Front != "" {
			cards = append(cards, current)
		}
		current = Card{}
		state = seeking
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()

		if line == separator {
			finishCard()
			continue
		}

		next, content, ok := matchPrefix(line)
		if !ok {
			if state != seeking {
				block = append(block, line)
			}
			continue
		}

		if next == inFront && state != seeking {
			// A new front always starts a new card.
			finishCard()
		} else {
			flushBlock()
		}
		state = next
		block = append(block, content)
	}

	finishCard()

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return cards, nil
}

// matchPrefix reports which section a line opens, with the prefix stripped
// and one leading space trimmed.
func matchPrefix(line string) (section, string, bool) {
	var sec section
	var prefix string
	switch {
	case strings.HasPrefix(line, frontPrefix):
		sec, prefix = inFront, frontPrefix
	case strings.HasPrefix(line, backPrefix):
		sec, prefix = inBack, backPrefix
	case strings.HasPrefix(line, contextPrefix):
		sec, prefix = inContext, contextPrefix
	default:
		return seeking, "", false
	}
	content := strings.TrimPrefix(line, prefix)
	content = strings.TrimPrefix(content, " ")
	return sec, content, true
}
