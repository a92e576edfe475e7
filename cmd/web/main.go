// @title           Milk Delivery API
// @version         1.0
// @description     Подписки на доставку молока: покупка через Razorpay, пауза, возобновление, отмена.
// @contact.name    Milk Delivery
// @contact.email   support@milkdelivery.local
// @license.name    MIT
// @license.url     https://opensource.org/licenses/MIT
// @host            localhost:8080
// @BasePath        /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

package main

import "github.com/creative2126/milk-delivery-backend-sub001/internal/app"

func main() {
	app.Run()
}
