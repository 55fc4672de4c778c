package service

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/musicfy-storefront/internal/constants"
	"github.com/musicfy-storefront/internal/models"
)

// DeliveryOption 配送选项
type DeliveryOption struct {
	Method        string       `json:"method"`
	Name          string       `json:"name"`
	Price         models.Money `json:"price"`
	EstimatedTime string       `json:"estimated_time"`
}

var deliveryOptions = []DeliveryOption{
	{Method: constants.DeliveryMethodStandard, Name: "Envio Padrão", Price: models.MustMoney("15.00"), EstimatedTime: "5-7 dias úteis"},
	{Method: constants.DeliveryMethodExpress, Name: "Envio Expresso", Price: models.MustMoney("30.00"), EstimatedTime: "1-3 dias úteis"},
	{Method: constants.DeliveryMethodPickup, Name: "Retirada Local", Price: models.MustMoney("0.00"), EstimatedTime: "Pronto em 24 horas"},
}

// DeliveryOptions 返回全部配送选项
func DeliveryOptions() []DeliveryOption {
	out := make([]DeliveryOption, len(deliveryOptions))
	copy(out, deliveryOptions)
	return out
}

// FindDeliveryOption 按配送方式查找，空值视为标准配送
func FindDeliveryOption(method string) (DeliveryOption, bool) {
	method = strings.ToLower(strings.TrimSpace(method))
	if method == "" {
		method = constants.DeliveryMethodStandard
	}
	for _, option := range deliveryOptions {
		if option.Method == method {
			return option, true
		}
	}
	return DeliveryOption{}, false
}

var (
	digitsPattern = regexp.MustCompile(`\d+`)
	hoursPattern  = regexp.MustCompile(`(?i)\bhoras?\b`)
)

const (
	deliveryUnspecified = "Não especificado"
	// 超过一年的时限视为无法估算
	maxEstimateDays = 365
)

// EstimateDelivery 按工作日计算预计送达文案
func EstimateDelivery(orderDate time.Time, estimatedTime string) string {
	matches := digitsPattern.FindAllString(estimatedTime, 2)
	if len(matches) == 0 {
		return deliveryUnspecified
	}
	minDays, err := strconv.Atoi(matches[0])
	if err != nil {
		return deliveryUnspecified
	}
	maxDays := minDays
	if len(matches) > 1 {
		if maxDays, err = strconv.Atoi(matches[1]); err != nil {
			return deliveryUnspecified
		}
	}
	// 以小时计的时限折算为整天
	if hoursPattern.MatchString(estimatedTime) {
		minDays = hoursToDays(minDays)
		maxDays = hoursToDays(maxDays)
	}
	if maxDays < minDays {
		minDays, maxDays = maxDays, minDays
	}
	if maxDays > maxEstimateDays {
		return deliveryUnspecified
	}

	from := addBusinessDays(orderDate, minDays)
	if minDays == maxDays {
		return fmt.Sprintf("Estimado para %s", formatDayMonth(from))
	}
	to := addBusinessDays(orderDate, maxDays)
	return fmt.Sprintf("Estimado entre %s e %s", formatDayMonth(from), formatDayMonth(to))
}

func hoursToDays(hours int) int {
	return (hours + 23) / 24
}

// addBusinessDays 跳过周六周日
func addBusinessDays(date time.Time, days int) time.Time {
	added := 0
	for added < days {
		date = date.AddDate(0, 0, 1)
		if weekday := date.Weekday(); weekday != time.Saturday && weekday != time.Sunday {
			added++
		}
	}
	return date
}

func formatDayMonth(t time.Time) string {
	return t.Format("02/01")
}
