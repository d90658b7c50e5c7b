package bot

// =============================================================================
// General messages
// =============================================================================

const (
	MsgUnexpectedErr  = `Unexpected error: %s`
	MsgUnknownCommand = "Unknown command. Send a photo of the affected skin area, or /help."
	MsgResetDone      = "Cleared the image, the result and the chat history."
)

const MsgStart = `
	*SKINALYZER*
	_Scan. Spot. Solve. Your skin, analyzed by AI._

	Get started: send a clear photo of the affected skin area, then press *Analyze*.

	Or just type a question. Ask questions like "Can eczema spread?" or "Is fungal infection dangerous?"
`

const MsgHelp = `
	🆘 *How Skinalyze Works*

	• Skinalyze helps you identify common skin conditions using the power of Artificial Intelligence.
	• Upload or capture a clear photo of the affected skin area.
	• Our AI model analyzes the image and classifies it as one of four conditions: Acne, Eczema, Fungal Infection, or Healthy.
	• You'll get a result with a confidence score and personalized suggestions powered by AI.
	• You can also ask questions like "Is eczema contagious?" using the built-in AI chat assistant.

	Commands:
	/analyze - analyze the current image
	/transcript - show the chat so far
	/reset - start over
`

// =============================================================================
// Image intake messages
// =============================================================================

const (
	MsgImageStaged     = "Image uploaded successfully! Ready for analysis."
	MsgImageStagedBusy = "Image uploaded successfully! It can be analyzed once the previous analysis finishes."
	MsgUnsupportedType = "Please upload a valid image file (JPEG, PNG or WebP)."
	MsgEmptyFile       = "The image file is empty. Please try another one."
	MsgFileTooLarge    = "The image is too large. Please send a smaller one."
	MsgSingleImageOnly = "Please send a single image. Albums are not supported, send the photo you want analyzed on its own."
	MsgDownloadFailed  = "Could not download the image from Telegram. Please try again."
)

// =============================================================================
// Analysis messages
// =============================================================================

const (
	MsgNoImage          = "Please upload an image first."
	MsgAnalyzing        = "Analyzing image..."
	MsgAnalysisInFlight = "Analysis already in progress, please wait."
	MsgAnalysisReady    = "Previous analysis finished. Ready to analyze your new image."
	MsgAnalysisComplete = "Analysis Complete! Detected: %s with %s confidence"
	MsgAnalysisFailed   = "Failed to analyze image. Please try again."
)

// =============================================================================
// Chat messages
// =============================================================================

const (
	MsgChatBusy        = "Still answering your previous question, please wait."
	MsgTranscriptEmpty = `No questions yet. Ask questions like "Can eczema spread?" or "Is fungal infection dangerous?"`
	MsgTranscriptYou   = "You"
	MsgTranscriptBot   = "Assistant"
)

// =============================================================================
// Buttons
// =============================================================================

const (
	BtnAnalyze = "🔬 Analyze"
	BtnRetry   = "🔁 Retry"
	BtnHelp    = "❓ Help"
)
