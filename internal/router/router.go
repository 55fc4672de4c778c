package router

import (
	"sort"
	"strings"

	"github.com/musicfy-storefront/internal/authz"
	"github.com/musicfy-storefront/internal/cache"
	"github.com/musicfy-storefront/internal/config"
	adminhandlers "github.com/musicfy-storefront/internal/http/handlers/admin"
	publichandlers "github.com/musicfy-storefront/internal/http/handlers/public"
	"github.com/musicfy-storefront/internal/http/response"
	"github.com/musicfy-storefront/internal/logger"
	"github.com/musicfy-storefront/internal/metrics"
	"github.com/musicfy-storefront/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	// 初始化 Handler（按顾客/运营分组）
	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)
	redisClient := cache.Client()
	loginPolicy, postalPolicy := storefrontRateLimits(cfg)
	loginLimiter := loginPolicy.middleware(redisClient)

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	apiV1 := r.Group("/api/v1")
	{
		// 无需会话的接口
		apiV1.POST("/session", publicHandler.CreateSession)
		apiV1.GET("/delivery/options", publicHandler.ListDeliveryOptions)
		apiV1.GET("/products", publicHandler.ListProducts)
		apiV1.GET("/products/:id", publicHandler.GetProduct)
		apiV1.GET("/postal/:code", postalPolicy.middleware(redisClient), publicHandler.LookupPostalCode)
		apiV1.POST("/payments/webhook/stripe", publicHandler.StripeWebhook)

		// 会话接口
		sessioned := apiV1.Group("")
		sessioned.Use(SessionMiddleware(c.Sessions, cfg.Session.CookieName))
		{
			sessioned.GET("/cart", publicHandler.GetCart)
			sessioned.DELETE("/cart", publicHandler.ClearCart)
			sessioned.POST("/cart/items", publicHandler.AddCartItem)
			sessioned.PUT("/cart/items/:product_id", publicHandler.UpdateCartItem)
			sessioned.DELETE("/cart/items/:product_id", publicHandler.DeleteCartItem)
			sessioned.GET("/cart/stream", publicHandler.StreamCart)

			sessioned.POST("/auth/register", loginLimiter, publicHandler.Register)
			sessioned.POST("/auth/login", loginLimiter, publicHandler.Login)
			sessioned.POST("/auth/federated", publicHandler.LoginFederated)
			sessioned.POST("/auth/logout", publicHandler.Logout)
			sessioned.GET("/me", publicHandler.Me)

			// 需登录的接口
			member := sessioned.Group("")
			member.Use(RequireAuthenticated())
			{
				member.POST("/checkout/address", publicHandler.SubmitAddress)
				member.POST("/checkout/session", publicHandler.StartCheckout)
				member.POST("/checkout/complete", publicHandler.CompleteCheckout)
				member.GET("/orders", publicHandler.ListOrders)
			}

			// 运营接口
			operator := sessioned.Group("")
			operator.Use(OperatorRBACMiddleware(c.Authz))
			{
				operator.PATCH("/orders/:id/status", adminHandler.UpdateOrderStatus)

				admin := operator.Group("/admin")
				{
					admin.GET("/order-statuses", adminHandler.ListOrderStatuses)
					admin.GET("/authz/roles", adminHandler.ListAuthzRoles)
					admin.POST("/authz/policies", adminHandler.GrantAuthzPolicy)
					admin.DELETE("/authz/policies", adminHandler.RevokeAuthzPolicy)
					admin.GET("/authz/subjects/:subject_id/roles", adminHandler.GetAuthzSubjectRoles)
					admin.PUT("/authz/subjects/:subject_id/roles", adminHandler.SetAuthzSubjectRoles)
					admin.GET("/authz/permissions/catalog", func(ctx *gin.Context) {
						response.Success(ctx, buildAdminPermissionCatalog(r))
					})
				}
			}
		}
	}

	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	// 健康检查
	r.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})

	return r
}

type adminPermissionCatalogItem struct {
	Module     string `json:"module"`
	Method     string `json:"method"`
	Object     string `json:"object"`
	Permission string `json:"permission"`
}

func buildAdminPermissionCatalog(engine *gin.Engine) []adminPermissionCatalogItem {
	if engine == nil {
		return []adminPermissionCatalogItem{}
	}

	routes := engine.Routes()
	seen := make(map[string]struct{}, len(routes))
	items := make([]adminPermissionCatalogItem, 0, len(routes))

	for _, item := range routes {
		method := strings.ToUpper(strings.TrimSpace(item.Method))
		if method == "" || method == "OPTIONS" || method == "HEAD" {
			continue
		}
		if !strings.HasPrefix(item.Path, "/api/v1/admin/") && item.Path != "/api/v1/orders/:id/status" {
			continue
		}
		object := authz.NormalizeObject(item.Path)
		permission := method + ":" + object
		if _, exists := seen[permission]; exists {
			continue
		}
		seen[permission] = struct{}{}
		items = append(items, adminPermissionCatalogItem{
			Module:     deriveAdminPermissionModule(object),
			Method:     method,
			Object:     object,
			Permission: permission,
		})
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Module == items[j].Module {
			if items[i].Object == items[j].Object {
				return items[i].Method < items[j].Method
			}
			return items[i].Object < items[j].Object
		}
		return items[i].Module < items[j].Module
	})

	return items
}

func deriveAdminPermissionModule(object string) string {
	normalized := strings.TrimPrefix(strings.TrimSpace(object), "/")
	if normalized == "" {
		return "system"
	}
	segments := strings.Split(normalized, "/")
	if len(segments) <= 1 {
		return segments[0]
	}
	if segments[0] != "admin" {
		return segments[0]
	}
	if segments[1] == "authz" {
		return "authz"
	}
	return segments[1]
}
