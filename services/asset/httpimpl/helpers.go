package httpimpl

import (
	"encoding/json"
	"time"

	"github.com/bitcoin-sv/minichain/errors"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

// record adds the call to the gocore stats, the counter and the duration histogram.
func record(counter *prometheus.CounterVec, function string, start time.Time, err error) {
	AssetStat.NewStat(function + "_http").AddTime(start)

	operation := "ok"
	if err != nil {
		operation = errors.CodeOf(err).String()
	}

	counter.WithLabelValues(function, operation).Inc()
	prometheusAssetHTTPDuration.WithLabelValues(function).Observe(float64(time.Since(start).Microseconds()) / 1_000)
}

// decodeBody decodes the JSON request body into v. Malformed input is an invalid argument, while
// errors raised by the model decoders keep their code.
func decodeBody(c echo.Context, v any) error {
	if err := json.NewDecoder(c.Request().Body).Decode(v); err != nil {
		if errors.CodeOf(err) != errors.ERR_UNKNOWN {
			return err
		}

		return errors.NewInvalidArgumentError("invalid request body", err)
	}

	return nil
}
