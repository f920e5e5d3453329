package convert

import (
	"regexp"
	"strings"
)

var (
	headingReg = regexp.MustCompile(`^(#{1,3})\s+(.*)$`)
	bulletReg  = regexp.MustCompile(`^[-*]\s+(.*)$`)
	orderedReg = regexp.MustCompile(`^\d+\.\s+(.*)$`)
	dividerReg = regexp.MustCompile(`^(-{3,}|\*{3,})$`)
)

// ImportText разбирает простой текст построчной эвристикой: ведущие
// #/##/### - заголовки, "- "/"* " - маркированный список, "1. " -
// нумерованный, строка из дефисов или звездочек - разделитель,
// остальное - обычный параграф. Пустые строки блоков не образуют.
func ImportText(text string) []ParsedBlock {
	var blocks []ParsedBlock

	for _, rawLine := range strings.Split(text, "\n") {
		line := strings.TrimSpace(rawLine)
		if line == "" {
			continue
		}

		switch {
		case dividerReg.MatchString(line):
			blocks = append(blocks, ParsedBlock{Type: BlockDivider})
		case headingReg.MatchString(line):
			m := headingReg.FindStringSubmatch(line)
			t := BlockHeading1
			switch len(m[1]) {
			case 2:
				t = BlockHeading2
			case 3:
				t = BlockHeading3
			}
			blocks = append(blocks, ParsedBlock{Type: t, Content: strings.TrimSpace(m[2])})
		case bulletReg.MatchString(line):
			blocks = append(blocks, ParsedBlock{Type: BlockList, Content: bulletReg.FindStringSubmatch(line)[1]})
		case orderedReg.MatchString(line):
			blocks = append(blocks, ParsedBlock{Type: BlockOrderedList, Content: orderedReg.FindStringSubmatch(line)[1]})
		default:
			blocks = append(blocks, ParsedBlock{Type: BlockText, Content: line})
		}
	}
	return blocks
}
