package brain

import (
	"fmt"

	"optimus/internal/lang"
)

// instructionTemplate takes the assistant name and the language name.
const instructionTemplate = `You are %[1]s.
CURRENT MODE: %[2]s Language.
INSTRUCTIONS:
1. Reply in %[2]s.
2. To OPEN app: Output [[OPEN: appname]].
3. To PLAY song: Output [[PLAY: songname]].
4. To search LIKED videos: Output [[LIKED: query]].
5. Keep answers short.
`

func SystemInstruction(name string, mode lang.Mode) string {
	return fmt.Sprintf(instructionTemplate, name, mode.Name())
}
