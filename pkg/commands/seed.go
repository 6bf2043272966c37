package commands

import "termfolio/pkg/domain"

const (
	HelpCommand  = "/help"
	ClearCommand = "/clear"

	// ClearSentinel is the /clear response body. Clients wipe their history
	// when they receive it instead of printing it.
	ClearSentinel = "CLEAR_TERMINAL"

	contentTypeText = "text/plain"
)

// SeedCommands is the built-in registry.
var SeedCommands = []domain.Command{
	{Name: "/about", Description: "a summary of me in less than 100 words", Category: domain.CategoryPersonal, ResponseKind: domain.KindStatic, Active: true},
	{Name: "/experience", Description: "shows all my working experiences", Category: domain.CategoryProfessional, ResponseKind: domain.KindStatic, Active: true},
	{Name: "/education", Description: "tells you about my education background", Category: domain.CategoryProfessional, ResponseKind: domain.KindStatic, Active: true},
	{Name: "/skill", Description: "not only shows my technical skills, you should check it out!", Category: domain.CategoryProfessional, ResponseKind: domain.KindStatic, Active: true},
	{Name: "/github", Description: "take a look at my public repos", Category: domain.CategoryProfessional, ResponseKind: domain.KindStatic, Active: true},
	{Name: "/past-project", Description: "a few of my recently completed projects", Category: domain.CategoryProfessional, ResponseKind: domain.KindStatic, Active: true},
	{Name: "/language", Description: "Sawasdee krap!", Category: domain.CategoryPersonal, ResponseKind: domain.KindStatic, Active: true},
	{Name: "/download-resume-pdf", Description: "a detailed resume in PDF format", Category: domain.CategoryDownload, ResponseKind: domain.KindFileDownload, Active: true},
	{Name: "/download-resume-md", Description: "a detailed resume in Markdown format, LLMs love .md the most!", Category: domain.CategoryDownload, ResponseKind: domain.KindFileDownload, Active: true},
	{Name: "/contact", Description: "hit me up on WhatsApp for a date :3", Category: domain.CategoryContact, ResponseKind: domain.KindStatic, Active: true},
	{Name: ClearCommand, Description: "clears all terminal messages", Category: domain.CategorySystem, ResponseKind: domain.KindStatic, Active: true},
	{Name: "/hello", Description: "greets you back with good vibes", Category: domain.CategoryPersonal, ResponseKind: domain.KindStatic, Active: true},
	{Name: "/hi", Description: "says hi back to you", Category: domain.CategoryPersonal, ResponseKind: domain.KindStatic, Active: true},
	{Name: "/hey", Description: "responds with a friendly hey", Category: domain.CategoryPersonal, ResponseKind: domain.KindStatic, Active: true},
	{Name: HelpCommand, Description: "shows all available commands", Category: domain.CategorySystem, ResponseKind: domain.KindDynamic, Active: true},
}

// SeedDownloads maps each FILE_DOWNLOAD command to the asset it serves.
var SeedDownloads = map[string]DownloadSpec{
	"/download-resume-pdf": {FileType: "pdf", FileName: "wzhenkai_resume.pdf"},
	"/download-resume-md":  {FileType: "md", FileName: "wzhenkai_resume.md"},
}

// SeedResponses holds version 1 of every non-dynamic command's content.
var SeedResponses = []domain.CommandResponse{
	seedResponse("/about", `Full-stack developer with 5+ years experience specializing in React.js/Next.js and Node.js/Python. AWS certified professional passionate about end-to-end project management. First-class honors in IT Security. Currently freelancing at MetaKore, building scalable web applications and APIs. Philosophy: "The first step to solving a problem is facing it." Fluent in Mandarin, English, and Malay. Always excited to tackle new challenges and deliver exceptional user experiences.`),
	seedResponse("/experience", `💼 WORK EXPERIENCE

🚀 MetaKore / Freelancer (Nov 2021 - Present)
   • End-to-end project management & full-stack dev with Next.js/React/Node.js/Python
   • Published APIs on RapidAPI & created MCP servers for public use
   • Multi-project management with tight deadlines & strong client relationships

🏢 UP DevLabs / Backend Developer (Sep 2022 - May 2024, Singapore)
   • Built microservices with Golang beego & comprehensive OpenAPI docs
   • Event-driven architecture with Apache Kafka, MySQL/MongoDB sync
   • Solved Kubernetes concurrency issues using Redis solutions

🌐 Flow Digital / Full Stack Developer (May - Nov 2021, Selangor)
   • E-commerce development with WordPress, WooCommerce & Shopify
   • Led UI/UX designers & developers, conducted code reviews
   • Enhanced PHP systems & managed deployments on multiple platforms

📸 123RF / Web Application Developer (May 2020 - Apr 2021, Selangor)
   • Migrated legacy PHP to Laravel framework module by module
   • Built user auth & image search modules with REST API documentation
   • Agile scrum methodology with weekly sprints & Docker environments

🏗️ J Star Berhad / Web Developer (Jun 2019 - Feb 2020, KL)
   • ASP.NET web development with SMS & payment gateway integrations
   • Client interface customization & project coordination with tight timelines
   • Debugging & optimization for enhanced user experience`),
	seedResponse("/education", `🎓 EDUCATION

🏛️ Multimedia University, Melaka / Bachelor of Information Technology (Security Technology)
   📅 Graduated Mar 2019 • 🏆 First-Class Honours • 📚 Dean's List
   🔬 Final Year Project: Blockchain-based online sharing platform
   🛡️ Specialized in cybersecurity, secure development & computer science fundamentals
   🌟 Participated in Golden Key Society

🏫 Multimedia University, Melaka / Diploma in Information Technology
   📅 Graduated Oct 2016 • 🏆 First-Class Honours • 📚 Dean's List
   🔬 Final Year Project: Web-based food ordering system
   🤝 Active in 30-Hour Famine 2015, Chinese Language Society & Golden Key Society`),
	seedResponse("/skill", `💻 TECHNICAL SKILLS

🚀 Frontend Magic:
• React.js & Next.js (Expert) • TypeScript/JavaScript (Expert)
• Tailwind CSS, CSS3, HTML5 • Responsive & Mobile-first Design
• State Management (Redux, Zustand) • Component Architecture

⚙️ Backend Wizardry:
• Node.js & Python (Expert) • Golang (Microservices)
• REST APIs & GraphQL • Database Design (SQL/NoSQL)
• Microservices Architecture • Event-driven Systems

🤖 AI & Machine Learning (Recent Deep Dive):
• LLMs & Foundation Models • Pre-training & Fine-tuning
• RAG (Retrieval-Augmented Generation) • Post-training Techniques
• Unsupervised Learning • Prompt Engineering
• AI Model Integration • Following AI trends daily on 𝕏

☁️ Cloud & DevOps:
• AWS (EC2, S3, Lambda, RDS) • Docker & Kubernetes
• Apache Kafka • CI/CD Pipelines • Infrastructure as Code

🛡️ Security & Others:
• IT Security • Secure Development Practices
• Git Version Control • Agile/Scrum • Test-Driven Development

🌟 But wait, there's more! I speak multiple programming languages fluently, debug code in my sleep, and stay updated with the latest AI breakthroughs! 😴

#keepbuilding`),
	seedResponse("/github", `https://github.com/zhenkai-dev`),
	seedResponse("/past-project", `🚀 RECENT PROJECTS

1. RoundNSurge CMS
   • https://roundnsurge.com
   • Full-featured CMS built with Laravel
   • Content management and publishing platform

2. ASEAN Lottery Results API
   • https://rapidapi.com/zhenkaidev-vnKI5xDH8HR/api/asean-lottery-results-api1
   • Real-time lottery data aggregation
   • RESTful API serving multiple countries

3. SlotKubai - AI Slot Prediction
   • https://slotkubai.com
   • Machine learning for slot game predictions
   • Advanced algorithms and data analysis

4. AI Football Prediction Platform
   • https://peaceful-liskov.209-127-228-182.plesk.page
   • Sports analytics and prediction engine
   • Real-time data processing

...and many more! Each project showcases different aspects of my full-stack capabilities.`),
	seedResponse("/language", `🌍 LANGUAGES

• Mandarin (Native)
  你好！我的中文非常流利

• English (Proficient)
  Hello! I'm fluent in English for international communication

• Malay (Proficient)
  Selamat datang! Saya boleh berkomunikasi dalam Bahasa Malaysia

• Thai (Basic)
  Sawasdee krap! I can handle basic communication

• Programming Languages (Expert)
  console.log("I speak fluent JavaScript, Python, TypeScript...")

Ready to communicate in any language for your project needs!`),
	seedResponse("/contact", `📞 LET'S CONNECT!

<svg xmlns="http://www.w3.org/2000/svg" width="20" height="20" viewBox="0 0 48 48"><path fill="#40c351" d="M35.176,12.832c-2.98-2.982-6.941-4.625-11.157-4.626c-8.704,0-15.783,7.076-15.787,15.774c-0.001,2.981,0.833,5.883,2.413,8.396l0.376,0.597l-1.595,5.821l5.973-1.566l0.577,0.342c2.422,1.438,5.2,2.198,8.032,2.199h0.006c8.698,0,15.777-7.077,15.78-15.776C39.795,19.778,38.156,15.814,35.176,12.832z"></path></svg> WhatsApp: https://wa.me/60166206903

<svg xmlns="http://www.w3.org/2000/svg" width="20" height="20" viewBox="0 0 48 48"><polygon fill="#e53935" points="35,11.2 24,19.45 13,11.2 12,17 13,23.7 24,31.95 35,23.7 36,17"></polygon></svg> Email: zk.wong96@gmail.com

<svg xmlns="http://www.w3.org/2000/svg" width="20" height="20" viewBox="0 0 48 48"><path fill="#212121" d="M38,42H10c-2.209,0-4-1.791-4-4V10c0-2.209,1.791-4,4-4h28c2.209,0,4,1.791,4,4v28C42,40.209,40.209,42,38,42z"></path></svg> X/Twitter: https://x.com/0x_wzhenkai

Don't be shy - I'm always excited to discuss new projects and opportunities!

P.S. I promise I'm more fun in person than my code comments suggest! 😄`),
	seedResponse(ClearCommand, ClearSentinel),
	seedResponse("/hello", "/hello back to you! 👋 Have a great day ahead! ✨"),
	seedResponse("/hi", "/hi there! 😊 Have a great day ahead! 🌟"),
	seedResponse("/hey", "/hey! 👋 Have a great day ahead! 🚀"),
	seedResponse("/download-resume-pdf", `📄 DOWNLOADING RESUME (PDF)

Preparing your detailed PDF resume...

📁 File: wzhenkai_resume.pdf
🎯 Format: ATS-friendly PDF

✅ Download initiated!

This resume includes:
• Complete work experience
• Technical skills breakdown
• Project portfolios
• Education background
• Certifications and achievements

Perfect for HR systems and hiring managers!`),
	seedResponse("/download-resume-md", `📝 DOWNLOADING RESUME (MARKDOWN)

Preparing your detailed Markdown resume...

📁 File: wzhenkai_resume.md
🤖 Format: LLM-friendly Markdown
🎯 Purpose: Perfect for AI analysis

✅ Download initiated!

This markdown version includes:
• Structured data for easy parsing
• Complete technical documentation
• Project details and links
• Machine-readable format

LLMs absolutely love this format! 🤖💕`),
}

func seedResponse(name, content string) domain.CommandResponse {
	return domain.CommandResponse{
		CommandName: name,
		Version:     1,
		Content:     content,
		ContentType: contentTypeText,
		Active:      true,
	}
}
