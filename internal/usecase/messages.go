package usecase

const (
	msgHello = "Olá %s! 👋\n\n" +
		"Bem-vindo à nossa loja! Aqui você pode:\n" +
		"• Ver nossos produtos\n" +
		"• Fazer pedidos\n" +
		"• Pagar com Mercado Pago\n\n" +
		"Use /produtos para ver o que temos disponível."

	msgProductsHeader = "📦 Nossos Produtos:\n\n"
	msgProductsFooter = "\nPara comprar, toque em um produto ou digite /comprar seguido do número."
	msgNoProducts     = "Nenhum produto disponível no momento."

	msgChooseAmount   = "Escolha o valor do pagamento:"
	msgInvalidProduct = "Produto não encontrado. Use /produtos para ver a lista."
	msgInvalidAmount  = "Valor inválido. Escolha uma das opções."
	msgPaymentLink    = "💳 Para finalizar sua compra, acesse:\n%s\n\nApós o pagamento, você receberá a confirmação aqui mesmo!"
	msgCheckoutFailed = "❌ Ocorreu um erro ao processar sua solicitação."

	msgPaymentApproved = "✅ Pagamento %s aprovado! Obrigado pela compra."
	msgPaymentRejected = "⚠️ Pagamento %s não foi aprovado (%s)."

	btnPay = "Pagar"
)
