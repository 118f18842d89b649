package main

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/casualjim/weave/tool"
)

func currentTime(timezone string) (string, error) {
	loc := time.Local
	if timezone != "" {
		l, err := time.LoadLocation(timezone)
		if err != nil {
			return "", fmt.Errorf("unknown timezone %q", timezone)
		}
		loc = l
	}
	return time.Now().In(loc).Format(time.RFC3339), nil
}

func rollDice(sides, count int) ([]int, error) {
	if sides < 2 {
		return nil, fmt.Errorf("a die needs at least 2 sides, got %d", sides)
	}
	count = max(count, 1)
	rolls := make([]int, count)
	for i := range rolls {
		rolls[i] = rand.IntN(sides) + 1
	}
	return rolls, nil
}

// builtinTools are the tools enabled with --tools.
func builtinTools() []tool.Definition {
	return []tool.Definition{
		tool.Must(currentTime,
			tool.Name("current_time"),
			tool.Description("Returns the current time in RFC 3339 format. Pass an IANA timezone name or leave it empty for local time."),
			tool.Parameters("timezone"),
		),
		tool.Must(rollDice,
			tool.Name("roll_dice"),
			tool.Description("Rolls count dice with the given number of sides and returns the results."),
			tool.Parameters("sides", "count"),
		),
	}
}
