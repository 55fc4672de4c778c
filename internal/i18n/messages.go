package i18n

var messagesPT = map[string]string{
	"error.bad_request":            "Requisição inválida.",
	"error.unauthorized":           "Autenticação necessária.",
	"error.forbidden":              "Você não tem permissão para esta operação.",
	"error.not_found":              "Recurso não encontrado.",
	"error.internal":               "Erro interno. Tente novamente.",
	"error.rate_limited":           "Muitas tentativas. Aguarde %d segundos.",
	"error.rate_limit_unavailable": "Serviço temporariamente indisponível.",
	"error.session_invalid":        "Sessão inválida ou expirada.",

	"cart.invalid_item":     "Produto inválido.",
	"cart.invalid_quantity": "Quantidade inválida.",
	"cart.sync_failed":      "Não foi possível sincronizar o carrinho. Seu carrinho foi reiniciado.",
	"cart.remote_failed":    "Não foi possível atualizar o carrinho. Tente novamente.",
	"cart.persist_failed":   "Não foi possível salvar o carrinho.",
	"cart.empty":            "Seu carrinho está vazio.",

	"auth.bad_credentials":      "Credenciais inválidas. Verifique seu e-mail e senha.",
	"auth.wrong_password":       "Senha incorreta. Por favor, tente novamente.",
	"auth.user_not_found":       "Nenhum usuário encontrado com este e-mail.",
	"auth.email_in_use":         "Este e-mail já está em uso por outra conta.",
	"auth.weak_password":        "A senha deve ter pelo menos %d caracteres.",
	"auth.invalid_token":        "Falha ao fazer login com o provedor externo.",
	"auth.provider_unavailable": "Serviço de autenticação indisponível. Tente novamente.",
	"auth.failed":               "Falha na autenticação. Tente novamente.",
	"auth.backend_failed":       "Falha ao registrar/processar usuário no backend.",
	"auth.login_required":       "Você precisa estar logado para continuar.",

	"postal.invalid_code": "CEP inválido. Deve conter 8 dígitos.",
	"postal.not_found":    "CEP não encontrado.",
	"postal.unavailable":  "Não foi possível consultar o CEP. Tente novamente.",

	"catalog.not_found":   "Produto não encontrado.",
	"catalog.unavailable": "Não foi possível carregar os produtos. Tente novamente.",

	"checkout.address_invalid":       "Preencha todos os campos obrigatórios do endereço.",
	"checkout.address_required":      "Salve um endereço de entrega antes de continuar.",
	"checkout.delivery_invalid":      "Opção de entrega inválida.",
	"checkout.cart_required":         "Carrinho não encontrado. Adicione produtos antes de finalizar.",
	"checkout.address_failed":        "Não foi possível salvar o endereço.",
	"checkout.payment_failed":        "Não foi possível iniciar o pagamento.",
	"checkout.payment_unconfigured":  "Pagamento indisponível no momento.",
	"checkout.session_invalid":       "Sessão de pagamento inválida.",
	"checkout.payment_not_confirmed": "Pagamento ainda não confirmado.",
	"checkout.product_unavailable":   "Um produto do carrinho não está mais disponível.",

	"order.fetch_failed":   "Não foi possível carregar seus pedidos.",
	"order.status_invalid": "Status de pedido inválido.",
	"order.update_failed":  "Não foi possível atualizar o pedido.",

	"payment.webhook_invalid": "Notificação de pagamento inválida.",
}

var messagesEN = map[string]string{
	"error.bad_request":            "Invalid request.",
	"error.unauthorized":           "Authentication required.",
	"error.forbidden":              "You are not allowed to perform this operation.",
	"error.not_found":              "Resource not found.",
	"error.internal":               "Internal error. Please try again.",
	"error.rate_limited":           "Too many attempts. Wait %d seconds.",
	"error.rate_limit_unavailable": "Service temporarily unavailable.",
	"error.session_invalid":        "Invalid or expired session.",

	"cart.invalid_item":     "Invalid product.",
	"cart.invalid_quantity": "Invalid quantity.",
	"cart.sync_failed":      "Could not synchronize the cart. Your cart was reset.",
	"cart.remote_failed":    "Could not update the cart. Please try again.",
	"cart.persist_failed":   "Could not save the cart.",
	"cart.empty":            "Your cart is empty.",

	"auth.bad_credentials":      "Invalid credentials. Check your e-mail and password.",
	"auth.wrong_password":       "Wrong password. Please try again.",
	"auth.user_not_found":       "No user found with this e-mail.",
	"auth.email_in_use":         "This e-mail is already used by another account.",
	"auth.weak_password":        "Password must have at least %d characters.",
	"auth.invalid_token":        "Sign-in with the external provider failed.",
	"auth.provider_unavailable": "Authentication service unavailable. Please try again.",
	"auth.failed":               "Authentication failed. Please try again.",
	"auth.backend_failed":       "Could not register the user in the backend.",
	"auth.login_required":       "You must be signed in to continue.",

	"postal.invalid_code": "Invalid postal code. It must contain 8 digits.",
	"postal.not_found":    "Postal code not found.",
	"postal.unavailable":  "Could not look up the postal code. Please try again.",

	"catalog.not_found":   "Product not found.",
	"catalog.unavailable": "Could not load the products. Please try again.",

	"checkout.address_invalid":       "Fill in every required address field.",
	"checkout.address_required":      "Save a delivery address before continuing.",
	"checkout.delivery_invalid":      "Invalid delivery option.",
	"checkout.cart_required":         "Cart not found. Add products before checking out.",
	"checkout.address_failed":        "Could not save the address.",
	"checkout.payment_failed":        "Could not start the payment.",
	"checkout.payment_unconfigured":  "Payment is unavailable right now.",
	"checkout.session_invalid":       "Invalid payment session.",
	"checkout.payment_not_confirmed": "Payment not confirmed yet.",
	"checkout.product_unavailable":   "A product in your cart is no longer available.",

	"order.fetch_failed":   "Could not load your orders.",
	"order.status_invalid": "Invalid order status.",
	"order.update_failed":  "Could not update the order.",

	"payment.webhook_invalid": "Invalid payment notification.",
}
