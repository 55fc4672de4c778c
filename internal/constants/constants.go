package constants

// 会话键值槽名称常量
const (
	StorageKeyCartItems   = "cartItems"
	StorageKeyCartID      = "cartId"
	StorageKeyCartCarried = "cartCarried"
	StorageKeySubject     = "subject"
)

// 购物车存储后端常量
const (
	CartStorageDatabase = "database"
	CartStorageRedis    = "redis"
	CartStorageMemory   = "memory"
)

// 登出购物车策略常量
const (
	LogoutPolicyClear     = "clear"
	LogoutPolicyKeepGuest = "keep_guest"
)

// 身份提供方常量
const (
	IdentityProviderLocal    = "local"
	IdentityProviderFirebase = "firebase"
)

// 登录方式常量
const (
	SignInMethodPassword  = "password"
	SignInMethodFederated = "federated"
)

// 主体类型常量
const (
	SubjectKindAnonymous     = "anonymous"
	SubjectKindAuthenticated = "authenticated"
)

// 配送方式常量
const (
	DeliveryMethodStandard = "padrao"
	DeliveryMethodExpress  = "expresso"
	DeliveryMethodPickup   = "retirada"
)

// 地址类型常量
const (
	AddressKindHome  = "casa"
	AddressKindWork  = "trabalho"
	AddressKindOther = "outro"
)

// 订单状态常量
const (
	OrderStatusAwaitingPayment = "Aguardando pagamento"
	OrderStatusReceived        = "Pedido recebido"
	OrderStatusPicking         = "Em separação"
	OrderStatusOutForDelivery  = "Saiu para entrega"
	OrderStatusInTransit       = "A caminho"
	OrderStatusDelivered       = "Entregue"
	OrderStatusPaymentFailed   = "Pagamento recusado"
)

// 支付结果常量
const (
	PaymentResultPaid    = "paid"
	PaymentResultPending = "pending"
	PaymentResultFailed  = "failed"
)

// 权限角色常量
const (
	RoleOperator = "operator"
	RoleCustomer = "customer"
)

// 会话传输常量
const (
	SessionHeader        = "X-Session-Token"
	SessionContextKey    = "storefront_session"
	RequestIDHeader      = "X-Request-ID"
	RequestIDContextKey  = "request_id"
	LocaleQueryParameter = "lang"
)

// 队列常量
const (
	QueueDefault  = "default"
	QueueCritical = "critical"
)

// 异步任务类型常量
const (
	TaskPaymentConfirm    = "payment:confirm"
	TaskOrderStatusUpdate = "order:status_update"
)
