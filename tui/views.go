package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/alan-christopher/bb84sim/bb84"
	"github.com/alan-christopher/bb84sim/bb84/qubit"
)

const (
	defaultTapeWidth = 48
	logLines         = 8
)

var stepHelp = [bb84.NumSteps]string{
	"Alice and Bob want a shared secret key. Alice can send qubits to Bob; Eve may be listening.",
	"Alice draws a random bit for every qubit she will send.",
	"Alice picks a random basis, Z or X, for every bit.",
	"Each bit is encoded as a qubit in its basis: |0⟩, |1⟩, |+⟩ or |−⟩.",
	"The qubits are in flight. Press e to let Eve intercept and resend them.",
	"Bob receives the qubits but does not know which bases Alice used.",
	"Bob measures each qubit in a random basis. A wrong basis gives a coin flip.",
	"Alice and Bob publish their bases and keep positions where they agree.",
	"They disclose a random subset of sifted bits; too many mismatches means Eve.",
	"Parity bisection corrects the remaining errors, then hashing removes Eve's knowledge.",
}

func (m model) View() string {
	if m.quitting {
		return ""
	}
	e := m.engine
	step := e.CurrentStep()
	s := e.State()
	met := e.Metrics()

	var b strings.Builder
	b.WriteString(m.header(step, s))
	b.WriteString("\n")
	b.WriteString(MutedStyle.Render(stepHelp[step]))
	b.WriteString("\n\n")
	b.WriteString(BoxStyle.Render(m.tapes(s)))
	b.WriteString("\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		BoxStyle.Render(metricsView(met)),
		BoxStyle.Render(eventsView(e.Events())),
	))
	b.WriteString("\n")
	if m.status != "" {
		b.WriteString(m.status)
		b.WriteString("\n")
	}
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m model) header(step int, s *bb84.ProtocolState) string {
	title := fmt.Sprintf("BB84 ▸ Step %d/%d: %s", step, bb84.NumSteps-1, bb84.StepName(step))
	var badges []string
	if m.engine.AutoPlaying() {
		badges = append(badges, m.spinner.View()+" playing")
	}
	if s.IsProtocolAborted {
		badges = append(badges, ErrorStyle.Render("ABORTED"))
	}
	if len(s.EveAttacks) > 0 {
		badges = append(badges, BadgeStyle.Render("EVE"))
	}
	return HeaderStyle.Render(title) + " " + strings.Join(badges, " ")
}

func (m model) tapeWidth(total int) int {
	w := defaultTapeWidth
	if m.width > 20 {
		w = m.width - 14
	}
	return min(w, total)
}

// tapes renders one row per per-qubit array, truncated to the screen width.
func (m model) tapes(s *bb84.ProtocolState) string {
	total := len(s.AliceBits)
	if total == 0 {
		return MutedStyle.Render("No qubits yet.")
	}
	w := m.tapeWidth(total)
	kept := indexSet(s.KeptIndices)
	check := indexSet(s.EveCheckIndices)

	rows := []string{
		row("Alice", w, func(i int) string { return bitCell(s.AliceBits, i) }),
		row("Basis", w, func(i int) string { return basisCell(s.AliceBases, i) }),
		row("Sent", w, func(i int) string { return qubitCell(s.AliceQubits, i) }),
		row("Eve", w, func(i int) string {
			if _, ok := s.EveAttacks[i]; ok {
				return EveStyle.Render("E")
			}
			return MutedStyle.Render("·")
		}),
		row("Bob bs", w, func(i int) string { return basisCell(s.BobBases, i) }),
		row("Bob", w, func(i int) string { return bitCell(s.BobBits, i) }),
		row("Sift", w, func(i int) string {
			switch {
			case check[i]:
				return WarningStyle.Render("c")
			case kept[i]:
				return MatchStyle.Render("✓")
			}
			return " "
		}),
	}
	if w < total {
		rows = append(rows, MutedStyle.Render(fmt.Sprintf("showing %d of %d positions", w, total)))
	}
	return strings.Join(rows, "\n")
}

func row(label string, w int, cell func(i int) string) string {
	var b strings.Builder
	b.WriteString(LabelStyle.Render(label))
	for i := 0; i < w; i++ {
		b.WriteString(cell(i))
	}
	return b.String()
}

func bitCell(bits []int, i int) string {
	if i >= len(bits) {
		return MutedStyle.Render("·")
	}
	return BaseStyle.Render(fmt.Sprint(bits[i]))
}

func basisCell(bases []qubit.Basis, i int) string {
	if i >= len(bases) {
		return MutedStyle.Render("·")
	}
	if bases[i] == qubit.Z {
		return BaseStyle.Render("+")
	}
	return InfoStyle.Render("×")
}

func qubitCell(qs []qubit.Qubit, i int) string {
	if i >= len(qs) {
		return MutedStyle.Render("·")
	}
	switch qs[i].Symbol {
	case "|0⟩":
		return BaseStyle.Render("↑")
	case "|1⟩":
		return BaseStyle.Render("→")
	case "|+⟩":
		return InfoStyle.Render("↗")
	}
	return InfoStyle.Render("↘")
}

func indexSet(idx []int) map[int]bool {
	r := make(map[int]bool, len(idx))
	for _, i := range idx {
		r[i] = true
	}
	return r
}

func metricsView(m bb84.Metrics) string {
	lines := []string{
		KeyStyle.Render("Metrics"),
		fmt.Sprintf("Qubits sent      %d", m.TotalQubits),
		fmt.Sprintf("Intercepted      %d", m.EveAttackedCount),
		fmt.Sprintf("Sifted bits      %d", m.SiftedBits),
		fmt.Sprintf("QBER             %.1f%%", m.QBER),
		fmt.Sprintf("Check errors     %d/%d", m.CheckErrors, m.CheckLength),
		fmt.Sprintf("P(detect Eve)    %.3f", m.DetectionProbability),
		fmt.Sprintf("Parities leaked  %d", m.ParityLeak),
		fmt.Sprintf("Final key bits   %d", m.KeySize),
	}
	if m.FinalKeyHex != "" {
		lines = append(lines, "Key "+KeyStyle.Render(m.FinalKeyHex))
		if m.KeysMatch {
			lines = append(lines, SuccessStyle.Render("Alice and Bob agree"))
		} else {
			lines = append(lines, ErrorStyle.Render("Keys differ"))
		}
	}
	if m.Aborted {
		lines = append(lines, ErrorStyle.Render("Aborted: "+m.AbortReason))
	}
	return strings.Join(lines, "\n")
}

func eventsView(evs []bb84.Event) string {
	if len(evs) > logLines {
		evs = evs[len(evs)-logLines:]
	}
	lines := []string{KeyStyle.Render("Events")}
	for _, ev := range evs {
		style := InfoStyle
		switch ev.Level {
		case bb84.LevelWarning:
			style = WarningStyle
		case bb84.LevelError:
			style = ErrorStyle
		}
		lines = append(lines, fmt.Sprintf("%s %s", MutedStyle.Render(ev.Time.Format("15:04:05")), style.Render(ev.Message)))
	}
	return strings.Join(lines, "\n")
}
