package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/fatih/color"
)

// maxPromptCount bounds the count accepted at the prompt.
const maxPromptCount = 100000

// promptForTarget asks for the host to probe.
func promptForTarget(aliases map[string]string) (string, error) {
	cyan := color.New(color.FgCyan, color.Bold)
	yellow := color.New(color.FgYellow)

	fmt.Println()
	cyan.Println("╔═══════════════════════════════════════════════════════════╗")
	cyan.Println("║         pingkit - ICMP, UDP and TCP ping toolkit          ║")
	cyan.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	if len(aliases) > 0 {
		names := make([]string, 0, len(aliases))
		for name := range aliases {
			names = append(names, name)
		}
		sort.Strings(names)

		fmt.Println("  Aliases:")
		for _, name := range names {
			yellow.Printf("    • %s → %s\n", name, aliases[name])
		}
		fmt.Println()
	}

	var target string
	err := huh.NewInput().
		Title("Target").
		Description("IP address, hostname or alias").
		Placeholder("192.0.2.7").
		Value(&target).
		Validate(validateTarget).
		Run()
	if err != nil {
		return "", fmt.Errorf("no target provided: %w", err)
	}

	return strings.TrimSpace(target), nil
}

// promptForCount asks for the number of probes, offering def.
func promptForCount(def int) (int, error) {
	value := strconv.Itoa(def)

	err := huh.NewInput().
		Title("Number of probes").
		Placeholder(value).
		Value(&value).
		Validate(validateCount).
		Run()
	if err != nil {
		return 0, fmt.Errorf("no probe count provided: %w", err)
	}

	return parseCount(value)
}

func validateTarget(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("target cannot be empty")
	}
	return nil
}

func validateCount(s string) error {
	_, err := parseCount(s)
	return err
}

func parseCount(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("enter a whole number")
	}
	if n < 1 || n > maxPromptCount {
		return 0, fmt.Errorf("count must be between 1 and %d", maxPromptCount)
	}
	return n, nil
}
