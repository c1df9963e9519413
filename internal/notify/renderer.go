package notify

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Lixing-Zhang/storefront/internal/models"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localesFS embed.FS

var localeFiles = []string{
	"locales/active.ru.json",
	"locales/active.en.json",
}

// Renderer turns an accepted order into the text block sent to the shop chat
type Renderer struct {
	localizer *i18n.Localizer
}

// NewRenderer loads the embedded message catalogs and renders in lang,
// falling back to Russian for unknown languages
func NewRenderer(lang string) (*Renderer, error) {
	bundle := i18n.NewBundle(language.Russian)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)
	for _, path := range localeFiles {
		if _, err := bundle.LoadMessageFileFS(localesFS, path); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	if _, err := language.Parse(lang); err != nil {
		return nil, fmt.Errorf("invalid notification language %q: %w", lang, err)
	}

	return &Renderer{localizer: i18n.NewLocalizer(bundle, lang)}, nil
}

// Render builds the payload: header, customer, phone, fulfillment method,
// desired time, address for deliveries, then one line per item.
func (r *Renderer) Render(order models.Order) (string, error) {
	var b strings.Builder

	write := func(id string, data map[string]any) error {
		line, err := r.localizer.Localize(&i18n.LocalizeConfig{
			MessageID:    id,
			TemplateData: data,
		})
		if err != nil {
			return fmt.Errorf("failed to render %s: %w", id, err)
		}
		b.WriteString(line)
		b.WriteByte('\n')
		return nil
	}

	methodID := "MethodPickup"
	if order.IsDelivery() {
		methodID = "MethodDelivery"
	}
	method, err := r.localizer.Localize(&i18n.LocalizeConfig{MessageID: methodID})
	if err != nil {
		return "", fmt.Errorf("failed to render %s: %w", methodID, err)
	}

	lines := []struct {
		id   string
		data map[string]any
	}{
		{id: "OrderHeader"},
		{id: "OrderCustomer", data: map[string]any{"Name": order.CustomerName}},
		{id: "OrderPhone", data: map[string]any{"Phone": order.Phone}},
		{id: "OrderMethod", data: map[string]any{"Method": method}},
		{id: "OrderDesiredTime", data: map[string]any{"DateTime": order.DesiredDateTime}},
	}
	for _, l := range lines {
		if err := write(l.id, l.data); err != nil {
			return "", err
		}
	}
	if order.IsDelivery() {
		if err := write("OrderAddress", map[string]any{"Address": order.Address}); err != nil {
			return "", err
		}
	}

	if err := write("OrderItemsHeader", nil); err != nil {
		return "", err
	}
	for _, item := range order.Items {
		err := write("OrderItemLine", map[string]any{
			"Name":     item.Name,
			"Quantity": item.Quantity,
			"Price":    item.UnitPrice.StringFixed(2),
		})
		if err != nil {
			return "", err
		}
	}

	return b.String(), nil
}
