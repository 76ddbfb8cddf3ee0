// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

func TestNewThemeWithProfile(t *testing.T) {
	theme := NewThemeWithProfile(termenv.TrueColor, true)
	if !theme.HasTrueColor {
		t.Error("TrueColor profile should set HasTrueColor")
	}
	if !theme.IsDark {
		t.Error("IsDark should follow the argument")
	}

	ascii := NewThemeWithProfile(termenv.Ascii, false)
	if ascii.HasTrueColor {
		t.Error("Ascii profile should not report true color")
	}
}

func TestThemeStylesRender(t *testing.T) {
	theme := NewThemeWithProfile(termenv.Ascii, true)

	styles := []struct {
		name  string
		style lipgloss.Style
	}{
		{"Title", theme.Title},
		{"Card", theme.Card},
		{"InputFocused", theme.InputFocused},
		{"StatusBar", theme.StatusBar},
		{"StatusWarning", theme.StatusWarning},
	}

	for _, s := range styles {
		rendered := s.style.Render("test")
		if !strings.Contains(rendered, "test") {
			t.Errorf("%s style should render its content, got %q", s.name, rendered)
		}
	}
}

func TestGetLayoutMode(t *testing.T) {
	tests := []struct {
		width int
		want  LayoutMode
	}{
		{40, LayoutNarrow},
		{59, LayoutNarrow},
		{60, LayoutMedium},
		{99, LayoutMedium},
		{100, LayoutWide},
	}

	theme := NewThemeWithProfile(termenv.Ascii, true)
	for _, tt := range tests {
		theme.SetSize(tt.width, 24)
		if got := theme.GetLayoutMode(); got != tt.want {
			t.Errorf("GetLayoutMode() at width %d = %v, want %v", tt.width, got, tt.want)
		}
	}
}

func TestRenderHelpersIncludeIndicators(t *testing.T) {
	tests := []struct {
		name      string
		render    func(string) string
		indicator string
	}{
		{"success", RenderSuccess, StatusIndicators.Success},
		{"error", RenderError, StatusIndicators.Error},
		{"warning", RenderWarning, StatusIndicators.Warning},
		{"info", RenderInfo, StatusIndicators.Info},
	}

	for _, tt := range tests {
		got := tt.render("message")
		if !strings.Contains(got, tt.indicator) || !strings.Contains(got, "message") {
			t.Errorf("%s: rendered %q should contain %q and the message", tt.name, got, tt.indicator)
		}
	}
}
