package notify

import (
	"testing"

	"github.com/Lixing-Zhang/storefront/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleOrder(method string) models.Order {
	return models.Order{
		ID:              7,
		CustomerName:    "Анна",
		Phone:           "+79990001122",
		DeliveryMethod:  method,
		Address:         "г. Михайловск, ул. Ленина 1",
		DesiredDateTime: "2030-06-04 12:30:00",
		Items: []models.OrderItem{
			{ProductID: 1, Quantity: 3, Name: "Bread", UnitPrice: decimal.NewFromInt(50)},
			{ProductID: 2, Quantity: 1, Name: "Cake", UnitPrice: decimal.RequireFromString("299.9")},
		},
	}
}

func TestRenderer_Russian(t *testing.T) {
	r, err := NewRenderer("ru")
	require.NoError(t, err)

	tests := []struct {
		name   string
		method string
		want   string
	}{
		{
			name:   "pickup omits address",
			method: models.DeliveryPickup,
			want: "Новый заказ:\n" +
				"Имя: Анна\n" +
				"Телефон: +79990001122\n" +
				"Способ получения: Самовывоз\n" +
				"Желаемое время: 2030-06-04 12:30:00\n" +
				"Товары:\n" +
				"Bread - 3 шт. (цена: 50.00 руб.)\n" +
				"Cake - 1 шт. (цена: 299.90 руб.)\n",
		},
		{
			name:   "delivery includes address",
			method: models.DeliveryDelivery,
			want: "Новый заказ:\n" +
				"Имя: Анна\n" +
				"Телефон: +79990001122\n" +
				"Способ получения: Доставка\n" +
				"Желаемое время: 2030-06-04 12:30:00\n" +
				"Адрес: г. Михайловск, ул. Ленина 1\n" +
				"Товары:\n" +
				"Bread - 3 шт. (цена: 50.00 руб.)\n" +
				"Cake - 1 шт. (цена: 299.90 руб.)\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Render(sampleOrder(tt.method))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenderer_English(t *testing.T) {
	r, err := NewRenderer("en")
	require.NoError(t, err)

	got, err := r.Render(sampleOrder(models.DeliveryPickup))
	require.NoError(t, err)
	assert.Contains(t, got, "New order:\n")
	assert.Contains(t, got, "Fulfillment: Pickup\n")
	assert.Contains(t, got, "Bread - 3 pcs. (price: 50.00 RUB)\n")
}

func TestRenderer_UnknownLanguageFallsBack(t *testing.T) {
	r, err := NewRenderer("de")
	require.NoError(t, err)

	got, err := r.Render(sampleOrder(models.DeliveryPickup))
	require.NoError(t, err)
	assert.Contains(t, got, "Новый заказ:")
}

func TestRenderer_InvalidLanguage(t *testing.T) {
	_, err := NewRenderer("not a tag!")
	assert.Error(t, err)
}

func TestRenderer_IsDeterministic(t *testing.T) {
	r, err := NewRenderer("ru")
	require.NoError(t, err)

	first, err := r.Render(sampleOrder(models.DeliveryDelivery))
	require.NoError(t, err)
	second, err := r.Render(sampleOrder(models.DeliveryDelivery))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
