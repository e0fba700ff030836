package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
	"github.com/sirupsen/logrus"
	"github.com/ysmood/gson"

	"meetcap/internal/ports"
)

// interKeyDelay is the minimum pause between synthesized keystrokes. React
// style frontends rebuild their state from input events; typing faster than
// this gets keystrokes dropped.
const interKeyDelay = 40 * time.Millisecond

// clickableSelector covers the element kinds conferencing UIs use for
// buttons, including non-<button> click handlers.
const clickableSelector = `button, [role="button"], input[type="submit"], a, div[tabindex], span[tabindex]`

// Driver implements ports.BrowserDriver over a CDP-controlled Chromium page.
type Driver struct {
	browser *rod.Browser
	page    *rod.Page
	log     *logrus.Entry
	closed  bool
}

// Open navigates to url and waits for the load event.
func (d *Driver) Open(ctx context.Context, url string, timeout time.Duration) error {
	page := d.page.Context(ctx).Timeout(timeout)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("wait load %s: %w", url, err)
	}
	return nil
}

// Evaluate runs js (a function expression) in the page and unmarshals the
// JSON result into out.
func (d *Driver) Evaluate(ctx context.Context, js string, out any) error {
	res, err := d.page.Context(ctx).Eval(js)
	if err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	if out == nil {
		return nil
	}
	var value gson.JSON = res.Value
	if err := json.Unmarshal([]byte(value.JSON("", "")), out); err != nil {
		return fmt.Errorf("decode evaluate result: %w", err)
	}
	return nil
}

// FindAndClick clicks the first visible element matching the CSS selector.
func (d *Driver) FindAndClick(ctx context.Context, selector string) bool {
	page := d.page.Context(ctx)
	elements, err := page.Elements(selector)
	if err != nil {
		d.log.WithError(err).WithField("selector", selector).Debug("element lookup failed")
		return false
	}
	for _, el := range elements {
		if visible, _ := el.Visible(); !visible {
			continue
		}
		if d.clickElement(el) {
			return true
		}
	}
	return false
}

// ClickByText clicks the first clickable element whose text contains any of
// the given substrings, trying a raw coordinate click when the synthetic
// click does not land.
func (d *Driver) ClickByText(ctx context.Context, substrings ...string) bool {
	page := d.page.Context(ctx)
	for _, want := range substrings {
		pattern := "/" + regexp.QuoteMeta(want) + "/i"
		found, el, err := page.HasR(clickableSelector, pattern)
		if err != nil || !found {
			continue
		}
		if visible, _ := el.Visible(); !visible {
			continue
		}
		if d.clickElement(el) {
			return true
		}
	}
	return false
}

// ClickAt issues a raw mouse click at page coordinates.
func (d *Driver) ClickAt(ctx context.Context, x, y float64) error {
	page := d.page.Context(ctx)
	if err := page.Mouse.MoveTo(proto.Point{X: x, Y: y}); err != nil {
		return err
	}
	return page.Mouse.Click(proto.InputMouseButtonLeft, 1)
}

// TypeText focuses the element, clears any existing value with keyboard
// select-all + delete, then types character by character. Direct value
// assignment is deliberately avoided.
func (d *Driver) TypeText(ctx context.Context, selector, text string) error {
	page := d.page.Context(ctx)
	found, el, err := page.Has(selector)
	if err != nil {
		return fmt.Errorf("find %s: %w", selector, err)
	}
	if !found {
		return fmt.Errorf("no element matches %s", selector)
	}
	if err := el.Focus(); err != nil {
		return fmt.Errorf("focus %s: %w", selector, err)
	}
	if err := el.SelectAllText(); err != nil {
		d.log.WithError(err).Debug("select-all before typing failed")
	}
	if err := page.Keyboard.Press(input.Backspace); err != nil {
		return fmt.Errorf("clear %s: %w", selector, err)
	}
	for _, r := range text {
		if err := el.Input(string(r)); err != nil {
			return fmt.Errorf("type into %s: %w", selector, err)
		}
		time.Sleep(interKeyDelay)
	}
	return nil
}

// Keyboard sends a shortcut such as "ctrl+shift+u" or a bare key like "c".
func (d *Driver) Keyboard(ctx context.Context, shortcut string) error {
	page := d.page.Context(ctx)
	actions := page.KeyActions()

	parts := strings.Split(strings.ToLower(shortcut), "+")
	for i, part := range parts {
		key, isModifier, err := lookupKey(part)
		if err != nil {
			return err
		}
		if i < len(parts)-1 && !isModifier {
			return fmt.Errorf("unexpected non-modifier %q in shortcut %q", part, shortcut)
		}
		if isModifier {
			actions = actions.Press(key)
		} else {
			actions = actions.Type(key)
		}
	}
	return actions.Do()
}

// Screenshot writes a PNG of the current viewport to path. Failures are the
// caller's to absorb; one missed frame must not halt a session.
func (d *Driver) Screenshot(ctx context.Context, path string) error {
	data, err := d.page.Context(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return fmt.Errorf("capture screenshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write screenshot: %w", err)
	}
	return nil
}

// Close tears down the page and browser. Idempotent.
func (d *Driver) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	if d.page != nil {
		_ = d.page.Close()
	}
	if d.browser != nil {
		return d.browser.Close()
	}
	return nil
}

func (d *Driver) clickElement(el *rod.Element) bool {
	_ = el.ScrollIntoView()
	if err := el.Click(proto.InputMouseButtonLeft, 1); err == nil {
		return true
	}
	shape, err := el.Shape()
	if err != nil {
		return false
	}
	point := shape.OnePointInside()
	if point == nil {
		return false
	}
	if err := d.page.Mouse.MoveTo(*point); err != nil {
		return false
	}
	return d.page.Mouse.Click(proto.InputMouseButtonLeft, 1) == nil
}

func lookupKey(name string) (input.Key, bool, error) {
	switch name {
	case "ctrl", "control":
		return input.ControlLeft, true, nil
	case "shift":
		return input.ShiftLeft, true, nil
	case "alt":
		return input.AltLeft, true, nil
	case "meta", "cmd":
		return input.MetaLeft, true, nil
	case "enter":
		return input.Enter, false, nil
	case "escape", "esc":
		return input.Escape, false, nil
	case "space":
		return input.Space, false, nil
	}
	if len(name) == 1 {
		r := rune(name[0])
		if r >= 'a' && r <= 'z' {
			return letterKeys[r-'a'], false, nil
		}
	}
	return input.Key(0), false, fmt.Errorf("unsupported key %q", name)
}

var letterKeys = [26]input.Key{
	input.KeyA, input.KeyB, input.KeyC, input.KeyD, input.KeyE, input.KeyF,
	input.KeyG, input.KeyH, input.KeyI, input.KeyJ, input.KeyK, input.KeyL,
	input.KeyM, input.KeyN, input.KeyO, input.KeyP, input.KeyQ, input.KeyR,
	input.KeyS, input.KeyT, input.KeyU, input.KeyV, input.KeyW, input.KeyX,
	input.KeyY, input.KeyZ,
}

var _ ports.BrowserDriver = (*Driver)(nil)
