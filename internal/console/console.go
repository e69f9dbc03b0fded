// Package console provides the interactive command line of the device.
package console

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"matter-rainmaker/internal/app"
	"matter-rainmaker/internal/matter"
	"matter-rainmaker/internal/rainmaker"
)

// ErrUsage is returned for malformed commands.
var ErrUsage = errors.New("usage")

// Console runs commands against a device.
type Console struct {
	app *app.App
	rl  *readline.Instance
}

// New creates a console for a. Call Run to start reading from the terminal.
func New(a *app.App) *Console {
	return &Console{app: a}
}

// Run reads commands until EOF or ctx is done, then calls cancel.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "light> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	c.rl = rl
	defer rl.Close()

	fmt.Fprintln(rl.Stdout(), helpText)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(rl.Stdout(), "Exiting...")
			cancel()
			return nil
		}
		if strings.TrimSpace(line) == "exit" || strings.TrimSpace(line) == "quit" {
			cancel()
			return nil
		}

		out, err := c.Exec(ctx, line)
		if err != nil {
			fmt.Fprintln(rl.Stderr(), "error:", err)
			continue
		}
		if out != "" {
			fmt.Fprintln(rl.Stdout(), out)
		}
	}
}

const helpText = `Commands:
  tree                              list endpoints, clusters and attributes
  get <ep> <cluster> <attr>         read an attribute (ids may be hex)
  set <ep> <cluster> <attr> <val>   change an attribute on the device
  params                            show RainMaker params
  param [device] <name> <val>       write a RainMaker param locally
  config                            show the RainMaker node config
  toggle                            press the light button
  help                              show this text
  exit                              quit`

// Exec runs a single command line and returns its output.
func (c *Console) Exec(ctx context.Context, line string) (string, error) {
	parts := strings.Fields(strings.TrimSpace(line))
	if len(parts) == 0 {
		return "", nil
	}
	cmd, args := strings.ToLower(parts[0]), parts[1:]

	switch cmd {
	case "help", "?":
		return helpText, nil
	case "tree", "t":
		return c.tree(), nil
	case "get", "g":
		return c.get(args)
	case "set", "s":
		return c.set(ctx, args)
	case "params", "p":
		return toJSON(c.app.RainMaker().Params())
	case "param":
		return c.param(ctx, args)
	case "config":
		data, err := c.app.RainMaker().ConfigJSON()
		return string(data), err
	case "toggle":
		if err := c.app.Toggle(ctx); err != nil {
			return "", err
		}
		state, _ := c.app.Light().State(c.app.LightEndpoint())
		return fmt.Sprintf("light is %s", onOff(state.On)), nil
	}
	return "", fmt.Errorf("unknown command %q, try help", cmd)
}

func (c *Console) tree() string {
	var b strings.Builder
	for _, ep := range c.app.Matter().Endpoints() {
		fmt.Fprintf(&b, "endpoint %d", ep.ID())
		for _, dt := range ep.DeviceTypes() {
			fmt.Fprintf(&b, " [0x%04X]", dt)
		}
		b.WriteString("\n")
		for _, cl := range ep.Clusters() {
			fmt.Fprintf(&b, "  0x%04X %s\n", cl.ID(), cl.Name())
			for _, a := range cl.Attributes() {
				fmt.Fprintf(&b, "    0x%04X %-24s %v\n", a.ID(), a.Name(), a.Value().Any())
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (c *Console) get(args []string) (string, error) {
	if len(args) != 3 {
		return "", fmt.Errorf("%w: get <ep> <cluster> <attr>", ErrUsage)
	}
	ref, err := parseRef(args)
	if err != nil {
		return "", err
	}
	v, err := c.app.Matter().Get(ref)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s = %v", ref, v.Any()), nil
}

func (c *Console) set(ctx context.Context, args []string) (string, error) {
	if len(args) != 4 {
		return "", fmt.Errorf("%w: set <ep> <cluster> <attr> <value>", ErrUsage)
	}
	ref, err := parseRef(args[:3])
	if err != nil {
		return "", err
	}
	a, err := c.app.Matter().Attribute(ref)
	if err != nil {
		return "", err
	}
	v, err := matter.Coerce(a.Type(), parseValue(args[3]))
	if err != nil {
		return "", err
	}
	if err := c.app.Matter().Update(ctx, ref, v, matter.OriginLocal); err != nil {
		return "", fmt.Errorf("%w (status %s)", err, matter.StatusFor(err))
	}
	return fmt.Sprintf("%s = %v", ref, a.Value().Any()), nil
}

// param accepts a device name of several words: everything before the last
// two arguments. Without it the first device is used.
func (c *Console) param(ctx context.Context, args []string) (string, error) {
	if len(args) < 2 {
		return "", fmt.Errorf("%w: param [device] <name> <value>", ErrUsage)
	}
	name, raw := args[len(args)-2], args[len(args)-1]
	device := strings.Join(args[:len(args)-2], " ")
	if device == "" {
		devices := c.app.RainMaker().Devices()
		if len(devices) == 0 {
			return "", rainmaker.ErrDeviceNotFound
		}
		device = devices[0].Name()
	}

	payload := map[string]map[string]any{device: {name: parseValue(raw)}}
	if err := c.app.RainMaker().HandleWrite(ctx, payload, rainmaker.SourceLocal); err != nil {
		return "", err
	}
	return toJSON(c.app.RainMaker().Params()[device])
}

func parseRef(args []string) (matter.AttributeRef, error) {
	var ids [3]uint64
	bits := [3]int{16, 32, 32}
	for i, s := range args {
		n, err := strconv.ParseUint(s, 0, bits[i])
		if err != nil {
			return matter.AttributeRef{}, fmt.Errorf("%w: bad id %q", ErrUsage, s)
		}
		ids[i] = n
	}
	return matter.AttributeRef{Endpoint: uint16(ids[0]), Cluster: uint32(ids[1]), Attribute: uint32(ids[2])}, nil
}

// parseValue reads a console argument the way a JSON decoder would.
func parseValue(s string) any {
	switch strings.ToLower(s) {
	case "true", "on":
		return true
	case "false", "off":
		return false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

func toJSON(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	return string(data), err
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
