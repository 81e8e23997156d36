package broker

// Dialogue texts that are only offered in English.
const (
	msgWelcomePitch = "Tired of searching from shop to shop? 🏃‍♂️💨\n\n" +
		"I can find products and compare prices in your local stores, instantly! 🛍️✨"
	msgWelcomeHow = "*Here's how I help:*\n\n" +
		"🔎 *FIND ANYTHING*\nFrom special edition chocolates to electronic parts.\n\n" +
		"🤫 *COMPARE PRICES*\nKnow the cost before you even step out.\n\n" +
		"✅ *SAVE TIME*\nNo more wasted trips for out-of-stock items."

	msgRegisterName = "👋 Welcome to Bizz Bazzar!\n\n" +
		"To help you find specific products in nearby stores, let's do a quick *one-time setup*. " +
		"This helps sellers easily identify your requests.\n\nWhat name should I use for you?\n➡️ *Type your full name below.*"
	msgRegisterAge = "*Great*, thanks!\n\nCould you please share your age? This is a one-time step to ensure " +
		"a safe and appropriate experience for everyone.\n➡️ *Type your age as a number* (e.g., 28)."
	msgInvalidAge      = "⚠️ Please enter your age as a number between 1 and 120."
	msgRegisterLocation = "Excellent. Now, the most important step to find *product availability* in your *area*.\n\n" +
		"Please *share your location* using the attach (📎) feature. This lets me connect you with sellers in your immediate vicinity. 📍"
	msgNeedLocation  = "📍 Please share your location using the attach (📎) feature, or type `0` to go back."
	msgBuyerAllSet   = "✅ *You're all set!*\n\nWelcome to Bizz Bazzar. You're now ready to check product availability and compare prices at nearby stores."
	msgReadyAgain    = "Ready to find something new?"
	msgProductPrompt = "*Type the NAME OF THE PRODUCT* you're looking for to get started.\n\n➡️ *e.g., \"HP Laptop Charger\" or \"Figaro Olive Oil\"*"

	msgFirstStep      = "⚠️ This is the first step. Please enter a product name to proceed."
	msgInvalidProduct = "⚠️ *Please enter a valid product name.*\n\nThis field is required to proceed."
	msgEditProduct    = "🔄 Let's edit the product name.\n\n📦 *Please enter the new product name:*"
	msgEditBrand      = "🔄 Let's edit the brand.\n\n🏷️ *Please enter the new brand name:*\n\nOr type *\"skip\"* for no brand preference."
	msgEditQuantity   = "🔄 Let's edit the quantity.\n\n🔢 *Please enter the new quantity:*\n\nOr type *\"skip\"* for no quantity specification."
	msgEditDetails    = "🔄 Let's edit the requirements.\n\n📝 *Please enter new requirements:*\n\nOr type *\"skip\"* for no special requirements."
	msgEditImage      = "📸 *Send a new product image:*\n\nOr type *\"skip\"* to remove the current image."

	msgBrandPrompt    = "🏷️ Any specific *BRAND* in mind?\n➡️ e.g., \"Samsung\", \"Amul\", \"Tata\"\n\n↩️ Type 0 to go back\n⏩ Type skip for any brand"
	msgQuantityPrompt = "Next, *HOW MANY* do you need?\n➡️ e.g., \"1 litre bottle\", \"2 pieces\", \"5kg\"\n\n↩️ Type 0 to go back\n⏩ Type skip if it doesn't matter"
	msgDetailsPrompt  = "📝 Any other *DETAILS* to add?\n➡️ e.g., \"Under ₹500\", \"Red color only\", \"5 year warranty\"\n\n↩️ Type 0 to go back\n⏩ Type skip if none"
	msgImagePrompt    = "📸 *PRODUCT IMAGE* (Optional)\n\n🎯 *A photo helps sellers give you better matches!*\n\n📷 Send your product image\n⏩ Type 'skip' to continue without image\n↩️ Type 0 to go back"
	msgCancelHint     = "❌ Type `cancel` to exit at any time."

	msgFirstQuantity = "Perfect. And how many do you need?\n➡️ *e.g., \"1 piece\", \"about 5\", \"2 kg\"*"
	msgFirstDetails  = "Almost there! Any other details I should know? Think about budget, color, size, etc.\n➡️ *e.g., \"under ₹1000\" or \"must be blue\"*"
	msgFirstImage    = "Perfect! One last thing - do you have a photo of the product?\n\n📷 *Send your product image now, or type 'skip' to continue without it.*"

	msgImageOnly     = "⚠️ Please send an image file only. Type 'skip' to continue without an image."
	msgImageFailed   = "❌ Error processing image. Type 'skip' to continue without an image."
	msgImageReceived = "✅ Image received! Processing your request..."
	msgNeedImage     = "📸 *Please send your product image to help sellers understand what you need!*\n\n📷 Send an image file\n⏩ Type 'skip' to continue without image"

	msgManualCategory  = "🤖 *I was unable to categorize your item. Please select the best fit from the list below:*"
	msgInvalidCategory = "⚠️ *Please select a valid category:*"
	msgConfirmOptions  = "⚠️ Please select a valid option:\n\n*1️⃣ Confirm and send to sellers* ➡️ *Type 1*\n*2️⃣ Edit fields* ➡️ *Type 2*\n*0️⃣ Go Back* ➡️ *Type 0*"
	msgEditOptions     = "⚠️ *Please select a valid option:* type a number from 1 to 7, or 0 to return to the summary."
	msgProductImage    = "📸 Product image from buyer"

	msgFirstRequestDone = "🎉 Thanks for completing your first request with Bizz Bazzar!\n\n" +
		"Your request has been sent to nearby sellers. Here's what you can do next:\n\n" +
		"✅ *start* – to make a new purchase request\n🏪 *join seller* – if you're a seller and want to list your shop\n\nNeed help? Type */help*"
	msgWelcomeBack = "👋 *Welcome back to Bizz Bazzar!*\n_Your Gateway to Local Stores_\n" + divider + "\n\n" +
		"*BUYER ZONE* 🛍️\nTo find any item in a nearby store,\ntype `start`\n\n" +
		"*SELLER ZONE* 🏪\nManage your shop or requests:\n• `join seller`\n• `/pending`\n• `pause` / `resume`\n• `cancel all`\n\n" +
		divider + "\nFor assistance, type `/help`"

	msgSellerWelcome  = "🎉 *Welcome to the Seller Program!*\n\nI'm excited to help you connect with local buyers and grow your business."
	msgSellerSteps    = "📋 *Quick Registration Process:*\n\n1️⃣ Shop Name\n2️⃣ Location\n3️⃣ Business Category\n\nLet's get started! 🚀"
	msgShopName       = "🏪 *Please enter your shop name:*\n\n✖️ Type `cancel` at any time to exit this process."
	msgSellerRetry    = "👋 *Welcome back!*\n\nIt looks like you started registering before but didn't finish. No worries - let's complete your seller registration now!"
	msgShopLocation   = "📍 *Please share your shop location using the Location feature.*\n\nThis helps buyers find you more easily."
	msgShopCategory   = "*Please select your shop's primary category:*"
	msgRegCancelled   = "❌ Registration cancelled."
	msgDashCancelled  = "✅ Process cancelled. Your seller profile remains unchanged."
	msgAddCategory    = "📂 Select a new category to ADD to your profile:"
	msgDashOptions    = "⚠️ Please select a valid option:\n\n*1️⃣ ADD a new category* ➡️ *Type 1*"
	msgDashRemoveOpt  = "\n*2️⃣ REMOVE a category* ➡️ *Type 2*"
	msgDashOptionsEnd = "\n\nOr type *\"cancel\"* to exit this process.\n\n❌ Type *\"cancel all\"* to cancel all your active orders."

	msgNoOrders       = "❓ You don't have any active orders to cancel."
	msgNoPending      = "✅ You have no pending requests! All caught up."
	msgEditResponse   = "📝 *Please type your new response message:*\n\nOr type *\"cancel\"* to keep your previous response."
	msgResponseGone   = "❌ Response cancelled. The buyer will not receive any message."
	msgFinishDraft    = "✋ *You have an offer waiting for your decision.*\n\nPlease send, edit or cancel it before answering another request. Here it is again:"
	msgDecisionPrompt = "⚠️ Please select a valid option:\n\n"
	msgUseReply       = "⚠️ *IMPORTANT:* Please *reply directly* to the product request message.\n\n" +
		"1️⃣ Long-press (or swipe) the product request message\n2️⃣ Select 'Reply'\n3️⃣ Type your price and availability\n\n" +
		"This ensures your response is correctly associated with the specific request, especially when you have multiple requests."
	msgAllAnswered = "🎉 *Excellent work!* You have successfully responded to all buyer requests.\n\n" +
		"✅ All your responses have been sent to buyers and posted in the relevant groups.\n\n" +
		"💼 You're now ready to receive new buyer requests. Thank you for being an active seller!"
)
